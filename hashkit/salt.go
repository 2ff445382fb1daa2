package hashkit

// saltDigitsMax bounds the digits a salt may need; enough for any int.
const saltDigitsMax = 20

// appendSalt appends the salt for the given attempt to dst and returns the
// extended slice. Attempt 0 uses the empty salt. For attempt >= 1 the salt
// is the decimal representation of attempt-1 with its characters reversed,
// so successive attempts produce "", "0", "1", ..., "9", "01", "11", "21", ...
// Every attempt yields a distinct salt and emitting the least significant
// digit first avoids any formatting or reversal pass.
func appendSalt(dst []byte, attempt int) []byte {
	if attempt <= 0 {
		return dst
	}
	counter := attempt - 1
	if counter == 0 {
		return append(dst, '0')
	}
	for counter > 0 {
		dst = append(dst, byte('0'+counter%10))
		counter /= 10
	}
	return dst
}
