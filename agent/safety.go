package agent

import "strings"

// denylist is matched case-insensitively against the whole command. It is a
// keyword filter, not a sandbox: quoting, aliasing or indirection slip past it.
var denylist = []string{
	"rm ",
	"del ",
	"/delete",
	"format",
	"shutdown",
	"reboot",
	":(){:|:&};:",
	"> /dev/sd",
	"mkfs",
	"dd if=",
}

// unsafePattern returns the first denylisted substring in command, if any.
func unsafePattern(command string) (string, bool) {
	lower := strings.ToLower(command)
	for _, p := range denylist {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
