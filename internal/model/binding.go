package model

import "time"

// ExpiryLayout is the timestamp format used on the validation wire protocol.
const ExpiryLayout = "2006-01-02 15:04:05"

// Binding associates one hardware identifier with the code it activated.
// The license type is copied from the code at binding time.
type Binding struct {
	ID          int64     `json:"id" db:"id"`
	HardwareID  string    `json:"hardware_id" db:"hardware_id"`
	Code        string    `json:"activation_code" db:"activation_code"`
	LicenseType string    `json:"license_type" db:"license_type"`
	ExpiresAt   time.Time `json:"expiry_date" db:"expiry_date"`
	ActivatedAt time.Time `json:"activated_at" db:"activated_at"`
}

// Expired reports whether the binding has expired at now. A binding that
// expires exactly at now is still valid.
func (b *Binding) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// BindingView is a Binding joined with the activation code it references.
type BindingView struct {
	Binding
	CodeLicenseType string `json:"code_license_type" db:"code_license_type"`
	DurationDays    int    `json:"duration" db:"duration"`
}

// FormatExpiry renders t in the wire layout, normalized to UTC.
func FormatExpiry(t time.Time) string {
	return t.UTC().Format(ExpiryLayout)
}
