package lti

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// bodyHash is the oauth_body_hash value for a request body.
func bodyHash(body []byte) string {
	sum := sha1.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// signature computes the HMAC-SHA1 signature of an OAuth 1.0a request without a token.
func signature(method string, target *url.URL, params map[string]string, consumerSecret string) string {
	all := make(map[string][]string, len(params))
	for key, value := range params {
		all[key] = append(all[key], value)
	}
	for key, values := range target.Query() {
		all[key] = append(all[key], values...)
	}

	pairs := make([]string, 0, len(all))
	for key, values := range all {
		for _, value := range values {
			pairs = append(pairs, percentEncode(key)+"="+percentEncode(value))
		}
	}
	sort.Strings(pairs)

	base := *target
	base.RawQuery = ""
	base.Fragment = ""
	base.Scheme = strings.ToLower(base.Scheme)
	base.Host = strings.ToLower(base.Host)

	baseString := strings.ToUpper(method) + "&" + percentEncode(base.String()) + "&" + percentEncode(strings.Join(pairs, "&"))

	mac := hmac.New(sha1.New, []byte(percentEncode(consumerSecret)+"&"))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func authorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, percentEncode(key)+`="`+percentEncode(params[key])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// percentEncode follows RFC 3986: only unreserved characters are left as is.
func percentEncode(value string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}
