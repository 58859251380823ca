package registration

import (
	s "meridian/pkg/string"
)

// FormatPostalCode renders a CEP as 00000-000 once it has 8 digits.
func FormatPostalCode(v string) string {
	d := s.Digits(v)
	if len(d) > 8 {
		d = d[:8]
	}
	if len(d) < 8 {
		return d
	}
	return d[:5] + "-" + d[5:]
}

// FormatDocument masks a CPF (000.000.000-00) or CNPJ (00.000.000/0000-00)
// as digits are typed.
func FormatDocument(v string) string {
	d := s.Digits(v)
	if len(d) > 14 {
		d = d[:14]
	}
	if len(d) <= 11 {
		if len(d) < 9 {
			return d
		}
		out := d[:3] + "." + d[3:6] + "." + d[6:9]
		if len(d) > 9 {
			out += "-" + d[9:]
		}
		return out
	}
	out := d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12]
	if len(d) > 12 {
		out += "-" + d[12:]
	}
	return out
}

// FormatPhone masks a Brazilian phone number: (00) 0000-0000 or (00) 00000-0000.
func FormatPhone(v string) string {
	d := s.Digits(v)
	if len(d) > 11 {
		d = d[:11]
	}
	switch {
	case d == "":
		return ""
	case len(d) <= 2:
		return "(" + d
	case len(d) <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case len(d) <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}
