package media

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// splitExtraArgs securely splits an operator-supplied ffmpeg argument
// string. No shell is involved, and shell-like metacharacters are
// rejected outright since exec never interprets them anyway.
func splitExtraArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid extra argument syntax: %w", err)
	}
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return nil, fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return args, nil
}
