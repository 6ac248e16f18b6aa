// Package clock exposes the current time as an agent tool.
package clock

import (
	"context"
	"reflect"
	"strings"
	"time"

	sysclock "github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/service/tool"
)

const name = "clock"

type Service struct{}

type Input struct {
	Location string `json:"location,omitempty" description:"IANA time zone name, defaults to UTC"`
}

type Output struct {
	RFC3339 string `json:"rfc3339"`
	Unix    int64  `json:"unix"`
	Weekday string `json:"weekday"`
}

func New() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return name
}

func (s *Service) Methods() tool.Signatures {
	return []tool.Signature{
		{
			Name:        "now",
			Description: "Returns the current date and time.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

func (s *Service) Method(name string) (tool.Executable, error) {
	switch strings.ToLower(name) {
	case "now":
		return s.now, nil
	default:
		return nil, tool.NewMethodNotFoundError(name)
	}
}

func (s *Service) now(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*Input)
	if !ok {
		return tool.NewInvalidInputError(in)
	}
	output, ok := out.(*Output)
	if !ok {
		return tool.NewInvalidOutputError(out)
	}
	location := time.UTC
	if input.Location != "" {
		loc, err := time.LoadLocation(input.Location)
		if err != nil {
			return err
		}
		location = loc
	}
	now := sysclock.Now().In(location)
	output.RFC3339 = now.Format(time.RFC3339)
	output.Unix = now.Unix()
	output.Weekday = now.Weekday().String()
	return nil
}
