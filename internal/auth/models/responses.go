package models

import tenant "meridian/internal/tenant/models"

// LoginData is the payload of a successful login.
type LoginData struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	User    *User          `json:"user"`
	Tenant  *tenant.Tenant `json:"tenant"`
}

// Complete reports whether the payload carries everything a session needs.
func (d *LoginData) Complete() bool {
	return d != nil && d.Access != "" && d.User != nil && d.Tenant != nil
}
