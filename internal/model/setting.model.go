package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

type SettingCategory string

const (
	SettingLoan   SettingCategory = "loan"
	SettingSystem SettingCategory = "system"
	SettingNotify SettingCategory = "notify"
)

var SettingCategories = []SettingCategory{SettingLoan, SettingSystem, SettingNotify}

type SettingDataType string

const (
	DataString  SettingDataType = "STRING"
	DataBoolean SettingDataType = "BOOLEAN"
	DataNumber  SettingDataType = "NUMBER"
)

type Setting struct {
	Model
	Key         string          `json:"key"          gorm:"column:key;size:200;uniqueIndex;not null" validate:"required,max=200"`
	Value       string          `json:"value"        gorm:"column:value"`
	Category    SettingCategory `json:"category"     gorm:"column:category;size:20;not null"         validate:"required,oneof=loan system notify"`
	DataType    SettingDataType `json:"data_type"    gorm:"column:data_type;size:20;not null;default:STRING" validate:"omitempty,oneof=STRING BOOLEAN NUMBER"`
	IsEncrypted bool            `json:"is_encrypted" gorm:"column:is_encrypted;not null;default:false"`
	Description string          `json:"description"  gorm:"column:description"`
}

func (Setting) TableName() string { return "settings" }

// Coerce converts a raw json value into the stored text form for dt,
// ok=false when the value does not fit the type.
func (dt SettingDataType) Coerce(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch dt {
	case DataBoolean:
		switch t := v.(type) {
		case bool:
			return strconv.FormatBool(t), true
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "1":
				return "true", true
			case "false", "0":
				return "false", true
			}
		case float64:
			if t == 1 {
				return "true", true
			}
			if t == 0 {
				return "false", true
			}
		}
		return "", false
	case DataNumber:
		switch t := v.(type) {
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return "", false
			}
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	default:
		switch t := v.(type) {
		case string:
			return t, true
		case nil:
			return "", true
		case bool:
			return strconv.FormatBool(t), true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
		return "", false
	}
}

type GroupedSettings map[SettingCategory][]*Setting

type SettingsUpdateResponse struct {
	Success bool     `json:"success"`
	Skipped []string `json:"skipped"`
}
