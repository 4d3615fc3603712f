package renderer

import (
	"context"
	"fmt"
	"strconv"
)

// UPnP service types used by the renderer proxies.
const (
	ServiceTypeAVTransport      = "urn:schemas-upnp-org:service:AVTransport:1"
	ServiceTypeRenderingControl = "urn:schemas-upnp-org:service:RenderingControl:1"
)

// Arg is one named input argument of a UPnP action. Order matters: actions
// are encoded with their arguments in the order given.
type Arg struct {
	Name  string
	Value any
}

// Service is one UPnP service of a renderer.
//
// SendAction blocks until the device answers or ctx expires. Subscribe
// delivers every notification of variable to onChange on the reactor
// goroutine; the returned cancel function ends the subscription.
type Service interface {
	SendAction(ctx context.Context, action string, in []Arg, out ...string) (map[string]string, error)
	Subscribe(variable string, onChange func(value string)) (cancel func(), err error)
}

// Device gives access to the services of one discovered renderer.
type Device interface {
	Service(serviceType string) (Service, bool)
}

// FormatValue encodes an argument value the way UPnP expects it on the wire:
// booleans as "1"/"0", integers in decimal, strings verbatim.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// ParseBool decodes a UPnP boolean: 1/0, true/false or yes/no.
func ParseBool(s string) (bool, error) {
	switch s {
	case "1", "true", "True", "TRUE", "yes", "Yes", "YES":
		return true, nil
	case "0", "false", "False", "FALSE", "no", "No", "NO":
		return false, nil
	}
	return false, &strconv.NumError{Func: "ParseBool", Num: s, Err: strconv.ErrSyntax}
}

// ParseUint decodes a UPnP ui2/ui4 value.
func ParseUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
