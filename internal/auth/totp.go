package auth

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/pquerna/otp/totp"
)

const qrSize = 200

// NewTOTP generates a secret for account and renders its provisioning QR code.
func NewTOTP(issuer, account string) (*model.TwoFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return nil, err
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &model.TwoFASetup{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func ValidateTOTP(code, secret string) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
