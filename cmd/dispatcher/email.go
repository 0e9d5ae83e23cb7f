package main

import (
	"context"
	"errors"

	"github.com/nimasrn/lending-admin/internal/gateways"
)

type disabledEmail struct{}

func (disabledEmail) SendEmail(context.Context, *gateways.EmailRequest) error {
	return errors.New("email delivery is not configured")
}
