package registration

import (
	"strings"

	s "meridian/pkg/string"
)

// File is an uploaded image.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Company is the first step of the registration.
type Company struct {
	Name     string `json:"company_name" validate:"required,max=128"`
	Schema   string `json:"schema_name" validate:"required,slug"`
	Document string `json:"document" validate:"required,document"`
	LogoURL  string `json:"logo" validate:"omitempty,url"`
	Logo     *File  `json:"-"`
}

// Admin is the company's first administrator.
type Admin struct {
	Email          string `json:"email" validate:"required,email,max=255"`
	Phone          string `json:"phone" validate:"required,phone"`
	Password       string `json:"password" validate:"required,min=8"`
	RepeatPassword string `json:"repeat_password" validate:"required,eqfield=Password"`
	Nickname       string `json:"nickname" validate:"required,max=64"`
	Accepted       bool   `json:"acceptance" validate:"accepted"`
	Avatar         *File  `json:"-"`
}

// Address is where the company is located.
type Address struct {
	PostalCode string `json:"cep" validate:"required,postalcode"`
	Street     string `json:"endereco" validate:"required"`
	Number     string `json:"numero" validate:"required"`
	Complement string `json:"complemento"`
	District   string `json:"bairro" validate:"required"`
	City       string `json:"cidade" validate:"required"`
	State      string `json:"estado" validate:"required,len=2"`
	Country    string `json:"pais" validate:"required"`
}

// Form holds every step's input.
type Form struct {
	Company Company
	Admin   Admin
	Address Address
}

// Normalize trims text fields and applies the display masks.
func (f *Form) Normalize() {
	s.TrimStrings(
		&f.Company.Name, &f.Company.Schema, &f.Company.Document, &f.Company.LogoURL,
		&f.Admin.Email, &f.Admin.Phone, &f.Admin.Nickname,
		&f.Address.PostalCode, &f.Address.Street, &f.Address.Number, &f.Address.Complement,
		&f.Address.District, &f.Address.City, &f.Address.State, &f.Address.Country,
	)
	f.Company.Schema = strings.ToLower(f.Company.Schema)
	f.Company.Document = FormatDocument(f.Company.Document)
	f.Admin.Email = strings.ToLower(f.Admin.Email)
	f.Admin.Phone = FormatPhone(f.Admin.Phone)
	f.Address.PostalCode = FormatPostalCode(f.Address.PostalCode)
	f.Address.State = strings.ToUpper(f.Address.State)
}
