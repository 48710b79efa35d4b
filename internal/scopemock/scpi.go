package scopemock

import (
	"strings"
)

// Request is one parsed SCPI program message.
type Request struct {
	Header string // short-form header, e.g. ":WAV:SOUR"
	Args   string // everything after the first space
	Query  bool
}

// ParseRequest splits a line into a short-form header and its arguments.
// Long, short and mixed-case mnemonics all map to the same header.
func ParseRequest(line string) Request {
	line = strings.TrimSpace(line)
	header, args, _ := strings.Cut(line, " ")

	req := Request{Args: strings.TrimSpace(args)}
	if strings.HasSuffix(header, "?") {
		req.Query = true
		header = strings.TrimSuffix(header, "?")
	}
	req.Header = shortHeader(header)
	return req
}

func shortHeader(header string) string {
	header = strings.ToUpper(header)
	if strings.HasPrefix(header, "*") {
		return header
	}

	parts := strings.Split(header, ":")
	for i, part := range parts {
		parts[i] = shortMnemonic(part)
	}
	return strings.Join(parts, ":")
}

// shortMnemonic applies the IEEE 488.2 short-form rule: the first four
// letters, or three when the fourth is a vowel. Numeric suffixes are kept.
func shortMnemonic(word string) string {
	end := len(word)
	for end > 0 && word[end-1] >= '0' && word[end-1] <= '9' {
		end--
	}
	stem, suffix := word[:end], word[end:]

	if len(stem) > 4 {
		stem = stem[:4]
		if strings.ContainsRune("AEIOU", rune(stem[3])) {
			stem = stem[:3]
		}
	}
	return stem + suffix
}

// EncodeBlock frames data as an IEEE 488.2 definite-length block with a trailing newline.
func EncodeBlock(data []byte) []byte {
	header := []byte("#9")
	header = append(header, []byte(padLength(len(data)))...)
	out := make([]byte, 0, len(header)+len(data)+1)
	out = append(out, header...)
	out = append(out, data...)
	return append(out, '\n')
}

func padLength(n int) string {
	digits := []byte("000000000")
	for i := len(digits) - 1; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
