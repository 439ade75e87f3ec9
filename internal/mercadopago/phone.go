package mercadopago

// PhoneData is a phone number structured for the payment gateway.
type PhoneData struct {
	CountryCode string // "55" for Brazil
	AreaCode    string // DDD (2 digits)
	Number      string // 8 or 9 digits
}

// sanitizePhone strips every non digit from a phone number.
func sanitizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// SplitPhone breaks a raw phone string into country/area code and number,
// heuristically. Brazilian numbers may come with or without the 55 prefix;
// anything too short to carry a DDD is rejected (nil).
func SplitPhone(raw string) *PhoneData {
	digits := sanitizePhone(raw)

	// strip the country prefix when present
	country := "55"
	if len(digits) >= 12 && digits[:2] == "55" {
		digits = digits[2:]
	}

	// DDD + 8 or 9 digit number
	if len(digits) < 10 || len(digits) > 11 {
		return nil
	}

	return &PhoneData{
		CountryCode: country,
		AreaCode:    digits[:2],
		Number:      digits[2:],
	}
}
