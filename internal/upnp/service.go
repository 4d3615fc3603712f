package upnp

import (
	"context"
	"fmt"
	"go/token"
	"net"
	"net/url"
	"reflect"
	"time"

	"github.com/huin/goupnp"
	"github.com/huin/goupnp/soap"

	"github.com/nerrad567/r2upnpav/internal/renderer"
)

// defaultSubscribeRequestTimeout bounds the initial SUBSCRIBE.
const defaultSubscribeRequestTimeout = 5 * time.Second

var stringType = reflect.TypeOf("")

// Service is one UPnP service of a discovered device. It implements
// renderer.Service.
type Service struct {
	serviceType string
	client      *soap.SOAPClient
	eventURL    *url.URL
	localAddr   net.IP
	events      *EventServer
	timeout     time.Duration
}

var _ renderer.Service = (*Service)(nil)

// NewService wraps a goupnp service description.
//
// Parameters:
//   - svc: service as found in the device description
//   - localAddr: local address the device was discovered on (may be nil)
//   - events: event server for Subscribe (may be nil: Subscribe then fails)
func NewService(svc *goupnp.Service, localAddr net.IP, events *EventServer) *Service {
	s := &Service{
		serviceType: svc.ServiceType,
		client:      svc.NewSOAPClient(),
		localAddr:   localAddr,
		events:      events,
		timeout:     defaultSubscribeRequestTimeout,
	}
	if svc.EventSubURL.Ok {
		u := svc.EventSubURL.URL
		s.eventURL = &u
	}
	return s
}

// Type returns the service type URN.
func (s *Service) Type() string {
	return s.serviceType
}

// SendAction invokes action with the in arguments, encoded as UPnP strings in
// order, and returns the requested out arguments.
//
// Returns:
//   - map[string]string: one entry per out name; an argument the device left
//     out maps to ""
//   - error: ErrInvalidArgument for an unencodable name, ErrActionFailed for
//     transport errors and SOAP faults
func (s *Service) SendAction(ctx context.Context, action string, in []renderer.Arg, out ...string) (map[string]string, error) {
	request, err := newArgStruct(in2names(in), "soap")
	if err != nil {
		return nil, err
	}
	for i, a := range in {
		request.Elem().Field(i).SetString(renderer.FormatValue(a.Value))
	}

	response, err := newArgStruct(out, "xml")
	if err != nil {
		return nil, err
	}

	if err := s.client.PerformActionCtx(ctx, s.serviceType, action, request.Interface(), response.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrActionFailed, action, err)
	}

	result := make(map[string]string, len(out))
	for i, name := range out {
		result[name] = response.Elem().Field(i).String()
	}
	return result, nil
}

// Subscribe opens a GENA subscription for variable.
func (s *Service) Subscribe(variable string, onChange func(string)) (func(), error) {
	if s.eventURL == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEventURL, s.serviceType)
	}
	if s.events == nil {
		return nil, ErrCallbackUnavailable
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.events.Subscribe(ctx, s.eventURL, s.localAddr, variable, onChange)
}

// newArgStruct builds a pointer to a struct with one string field per name,
// tagged for goupnp's SOAP codec. The soap tag names request arguments and
// the xml tag names response arguments.
func newArgStruct(names []string, tag string) (reflect.Value, error) {
	fields := make([]reflect.StructField, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if !token.IsIdentifier(name) || !token.IsExported(name) || seen[name] {
			return reflect.Value{}, fmt.Errorf("%w: %q", ErrInvalidArgument, name)
		}
		seen[name] = true
		fields[i] = reflect.StructField{
			Name: name,
			Type: stringType,
			Tag:  reflect.StructTag(fmt.Sprintf(`%s:%q`, tag, name)),
		}
	}
	return reflect.New(reflect.StructOf(fields)), nil
}

func in2names(in []renderer.Arg) []string {
	names := make([]string, len(in))
	for i, a := range in {
		names[i] = a.Name
	}
	return names
}
