// Package sanitize strips script-injection payloads from untrusted string
// input before it reaches validation or storage.
package sanitize

import "regexp"

// maxPasses bounds the iterative strip so adversarial input cannot spin the
// sanitizer indefinitely.
const maxPasses = 10

// scriptTagPattern matches an opening script tag, its content, and the
// closing tag, case-insensitively. The non-greedy body keeps separate tags
// from being merged into one match.
var scriptTagPattern = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)

// Clean removes script-tag payloads from value. The strip is applied
// repeatedly until the value stops changing or the pass bound is reached,
// so nested tags such as "<scr<script></script>ipt>alert(1)</script>"
// cannot smuggle a payload past a single pass.
func Clean(value string) string {
	for i := 0; i < maxPasses; i++ {
		stripped := scriptTagPattern.ReplaceAllString(value, "")
		if stripped == value {
			return stripped
		}
		value = stripped
	}
	return value
}
