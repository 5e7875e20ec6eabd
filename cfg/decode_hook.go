package cfg

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)

		switch t {
		case reflect.TypeOf(LogSeverity("")):
			lower := strings.ToLower(s)
			if !slices.Contains([]string{"trace", "debug", "info", "warn", "error"}, lower) {
				return nil, fmt.Errorf("cfg: invalid verbosity %q", s)
			}
			return LogSeverity(strings.ToUpper(lower[:1]) + lower[1:]), nil

		case reflect.TypeOf(IDMap{}):
			return parseIDMap(s)

		case reflect.TypeOf(uint32(0)):
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("cfg: invalid uid/gid %q: %w", s, err)
			}
			return uint32(n), nil

		default:
			return data, nil
		}
	}
}

// parseIDMap decodes a "FROM:TO,FROM:TO" flag value into an IDMap, the
// wire format for --usermap/--groupmap (SPEC_FULL.md §6).
func parseIDMap(s string) (IDMap, error) {
	m := IDMap{}
	if s == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("cfg: invalid id mapping %q, want FROM:TO", pair)
		}
		from, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("cfg: invalid id mapping %q: %w", pair, err)
		}
		to, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("cfg: invalid id mapping %q: %w", pair, err)
		}
		m[uint32(from)] = uint32(to)
	}
	return m, nil
}

// DecodeHook composes the custom hooks above with viper/mapstructure's
// standard ones, exactly the way the teacher's cfg.DecodeHook does.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
