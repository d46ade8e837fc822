package logger

// MaskPhone redacts the middle of a sender number so that log output never
// carries a full phone number. Long numbers keep the first four and last four
// characters; short ones keep three and two. Empty input stays empty.
func MaskPhone(number string) string {
	if number == "" {
		return ""
	}
	if len(number) <= 8 {
		if len(number) <= 5 {
			return "****"
		}
		return number[:3] + "****" + number[len(number)-2:]
	}
	return number[:4] + "****" + number[len(number)-4:]
}
