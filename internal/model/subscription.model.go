package model

import (
	"fmt"
)

type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "Active"
	SubscriptionPause  SubscriptionStatus = "Pause"
	SubscriptionCancel SubscriptionStatus = "Cancel"
)

type SubscriptionAction string

const (
	ActionPause  SubscriptionAction = "pause"
	ActionCancel SubscriptionAction = "cancel"
	ActionResume SubscriptionAction = "resume"
)

func (a SubscriptionAction) Valid() bool {
	return a == ActionPause || a == ActionCancel || a == ActionResume
}

// Past is the verb recorded in modified_user, e.g. "paused".
func (a SubscriptionAction) Past() string {
	switch a {
	case ActionPause:
		return "paused"
	case ActionCancel:
		return "cancelled"
	case ActionResume:
		return "resumed"
	}
	return string(a)
}

var subscriptionTransitions = map[SubscriptionStatus]map[SubscriptionAction]SubscriptionStatus{
	SubscriptionActive: {ActionPause: SubscriptionPause, ActionCancel: SubscriptionCancel},
	SubscriptionPause:  {ActionCancel: SubscriptionCancel, ActionResume: SubscriptionActive},
	SubscriptionCancel: {ActionResume: SubscriptionActive},
}

// Next returns the state reached from s by action, or ok=false when the
// transition is not allowed.
func (s SubscriptionStatus) Next(action SubscriptionAction) (SubscriptionStatus, bool) {
	to, ok := subscriptionTransitions[s][action]
	return to, ok
}

// Label is the past-tense form reported to clients.
func (s SubscriptionStatus) Label() string {
	switch s {
	case SubscriptionPause:
		return "Paused"
	case SubscriptionCancel:
		return "Cancelled"
	}
	return string(s)
}

type TransitionError struct {
	Action SubscriptionAction
	From   SubscriptionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a subscription in state %s", e.Action, e.From)
}

type Subscription struct {
	Model
	CatalogMeta
	SubscriptionName   string             `json:"subscription_name"   gorm:"column:subscription_name;size:255;not null" validate:"required,max=255"`
	SubscriptionAmount float64            `json:"subscription_amount" gorm:"column:subscription_amount;not null"        validate:"gte=0"`
	NoOfBorrowers      int                `json:"no_of_borrowers"     gorm:"column:no_of_borrowers;not null"            validate:"gte=0"`
	TypeOf             string             `json:"type_of"             gorm:"column:type_of;size:20;not null"            validate:"required,oneof=Monthly Quarterly Yearly"`
	Status             SubscriptionStatus `json:"status"              gorm:"column:status;size:20;not null;default:Active" validate:"omitempty,oneof=Active Pause Cancel"`
}

func (Subscription) TableName() string { return "subscriptions" }

// SetStatus keeps is_deleted derived from status.
func (s *Subscription) SetStatus(st SubscriptionStatus) {
	s.Status = st
	s.IsDeleted = st == SubscriptionCancel
}

type SubscriptionActionRequest struct {
	Action SubscriptionAction `json:"action"`
}

type SubscriptionActionResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type Coupon struct {
	Model
	CatalogMeta
	CouponCode        string          `json:"coupon_code"                  gorm:"column:coupon_code;size:100;uniqueIndex;not null" validate:"required,max=100"`
	CouponValue       float64         `json:"coupon_value"                 gorm:"column:coupon_value;not null"                     validate:"gte=0"`
	DateFrom          Date            `json:"date_from"                    gorm:"column:date_from;not null"                        validate:"required"`
	DateTo            Date            `json:"date_to"                      gorm:"column:date_to;not null"                          validate:"required"`
	Subscriptions     []*Subscription `json:"subscriptions"                gorm:"many2many:coupon_subscriptions"`
	SubscriptionUUIDs *[]string       `json:"subscription_uuids,omitempty" gorm:"-"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) Check() map[string]string {
	if !c.DateFrom.IsZero() && !c.DateTo.IsZero() && c.DateTo.Before(c.DateFrom.Time) {
		return map[string]string{"date_to": "date_to must not be before date_from"}
	}
	return nil
}

type Subscriber struct {
	Model
	CatalogMeta
	Name           string `json:"name"            gorm:"column:name;size:255;not null" validate:"required,max=255"`
	Email          string `json:"email"           gorm:"column:email;size:254"         validate:"omitempty,email"`
	Phone          string `json:"phone"           gorm:"column:phone;size:20"          validate:"omitempty,phone"`
	SubscriptionID *int64 `json:"subscription_id" gorm:"column:subscription_id"`
}

func (Subscriber) TableName() string { return "subscribers" }

type EmploymentType struct {
	Model
	CatalogMeta
	EmpName string `json:"emp_name" gorm:"column:emp_name;size:255;not null" validate:"required,max=255"`
}

func (EmploymentType) TableName() string { return "employment_types" }

type OccupationType struct {
	Model
	CatalogMeta
	OccName string `json:"occ_name" gorm:"column:occ_name;size:255;not null" validate:"required,max=255"`
}

func (OccupationType) TableName() string { return "occupation_types" }
