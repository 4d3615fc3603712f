package lirc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxIncludeDepth stops include cycles.
const maxIncludeDepth = 8

// wildcard matches any remote or button.
const wildcard = "*"

// Code is one button event as reported by lircd.
type Code struct {
	Remote string
	Button string
	// Repeat is 0 for a fresh press and counts up while the button is held.
	Repeat uint
}

// String renders the code like a lircd event line.
func (c Code) String() string {
	return fmt.Sprintf("%02x %s %s", c.Repeat, c.Button, c.Remote)
}

// entry is one begin/end block of a lircrc file.
type entry struct {
	remote  string
	button  string
	configs []string
	repeat  uint
	delay   uint
	next    int
}

// Config maps button events to operation names for one program.
//
// Decode is stateful (entries with several config lines cycle through them)
// and must only be called from one goroutine.
type Config struct {
	program  string
	entries  []*entry
	warnings []string
}

// ReadConfig loads a lircrc file and keeps the entries whose prog is program.
//
// Returns:
//   - *Config: the decoder
//   - error: ErrConfigRead or ErrConfigSyntax
func ReadConfig(path, program string) (*Config, error) {
	c := &Config{program: program}
	if err := c.readFile(path, 0); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseConfig reads lircrc text from r. include directives are resolved
// relative to the working directory.
func ParseConfig(r io.Reader, program string) (*Config, error) {
	c := &Config{program: program}
	if err := c.parse(r, "<input>", ".", 0); err != nil {
		return nil, err
	}
	return c, nil
}

// Len returns the number of entries for the program.
func (c *Config) Len() int {
	return len(c.entries)
}

// Warnings lists the constructs that were skipped while parsing, such as
// mode blocks, one line each with its file and line number.
func (c *Config) Warnings() []string {
	return c.warnings
}

// Decode returns the operation names code maps to, in file order.
//
// A repeated code (Repeat > 0) only matches entries with a non-zero repeat:
// after delay repeats have been ignored, every repeat-th one matches.
func (c *Config) Decode(code Code) []string {
	var out []string
	for _, e := range c.entries {
		if !matches(e.remote, code.Remote) || !matches(e.button, code.Button) {
			continue
		}
		if code.Repeat > 0 {
			if e.repeat == 0 || code.Repeat <= e.delay || (code.Repeat-e.delay-1)%e.repeat != 0 {
				continue
			}
		}
		out = append(out, e.configs[e.next])
		e.next = (e.next + 1) % len(e.configs)
	}
	return out
}

func matches(pattern, value string) bool {
	return pattern == wildcard || pattern == value
}

func (c *Config) readFile(path string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%w: %s: include nested too deeply", ErrConfigSyntax, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigRead, err)
	}
	defer f.Close()
	return c.parse(f, path, filepath.Dir(path), depth)
}

func (c *Config) parse(r io.Reader, name, dir string, depth int) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	var cur *entry
	var prog string
	// mode names the mode block being skipped.
	var mode string

	syntax := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s:%d: %s", ErrConfigSyntax, name, lineNo, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		c.warnings = append(c.warnings, fmt.Sprintf("%s:%d: %s", name, lineNo, fmt.Sprintf(format, args...)))
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if mode != "" {
			if blockName(line, "end") == mode {
				mode = ""
			}
			continue
		}

		if rest, ok := strings.CutPrefix(line, "include"); ok && cur == nil && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
			target := strings.Trim(strings.TrimSpace(rest), `"<>`)
			if target == "" {
				return syntax("include without a file")
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			if err := c.readFile(target, depth+1); err != nil {
				return err
			}
			continue
		}

		switch {
		case line == "begin":
			if cur != nil {
				return syntax("begin inside begin")
			}
			cur = &entry{remote: wildcard}
			prog = ""
			continue
		case blockName(line, "begin") != "":
			if cur != nil {
				return syntax("begin %s inside begin", blockName(line, "begin"))
			}
			mode = blockName(line, "begin")
			warn("mode %q skipped, modes are not supported", mode)
			continue
		case line == "end":
			if cur == nil {
				return syntax("end without begin")
			}
			if prog == "" {
				return syntax("entry without prog")
			}
			if cur.button == "" {
				return syntax("entry without button")
			}
			if len(cur.configs) == 0 {
				return syntax("entry without config")
			}
			if prog == c.program {
				c.entries = append(c.entries, cur)
			}
			cur = nil
			continue
		case blockName(line, "end") != "":
			return syntax("end %s without begin %s", blockName(line, "end"), blockName(line, "end"))
		}

		if cur == nil {
			return syntax("%q outside begin/end", line)
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return syntax("expected key = value")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "prog":
			prog = value
		case "remote":
			cur.remote = value
		case "button":
			if cur.button != "" {
				return syntax("button sequences are not supported")
			}
			cur.button = value
		case "config":
			cur.configs = append(cur.configs, value)
		case "repeat", "delay":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return syntax("%s: %v", key, err)
			}
			if key == "repeat" {
				cur.repeat = uint(n)
			} else {
				cur.delay = uint(n)
			}
		case "flags":
			// once, quit and mode flags only matter to mode-based configs.
		case "mode":
			warn("mode switch to %q ignored, modes are not supported", value)
		default:
			return syntax("unknown keyword %q", key)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigRead, err)
	}
	if mode != "" {
		return syntax("missing end %s", mode)
	}
	if cur != nil {
		return syntax("missing end")
	}
	return nil
}

// blockName returns the mode name of a "begin <mode>" or "end <mode>" line
// for the given keyword, or "" when line is not one.
func blockName(line, keyword string) string {
	rest, ok := strings.CutPrefix(line, keyword)
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return ""
	}
	return strings.TrimSpace(rest)
}
