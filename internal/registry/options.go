package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// optionField describes one settable option of a plugin.
type optionField struct {
	index    int
	required bool
}

func optionFields(t reflect.Type) map[string]optionField {
	fields := make(map[string]optionField)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.Split(field.Tag.Get("cty"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		fields[name] = optionField{index: i, required: field.Tag.Get("option") == "required"}
	}
	return fields
}

// DecodeOptions converts a part's options into the plugin's option struct.
func (p *RegisteredPlugin) DecodeOptions(part *config.Part) (any, error) {
	if p.NewOptions == nil {
		if len(part.Options) > 0 {
			return nil, &lifecycle.ManifestError{
				Part:   part.Name,
				Reason: fmt.Sprintf("plugin %q accepts no options, got %v", part.Plugin, optionNames(part.Options)),
			}
		}
		return nil, nil
	}

	target := p.NewOptions()
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("plugin %q: NewOptions must return a pointer to a struct", part.Plugin))
	}
	value = value.Elem()
	fields := optionFields(value.Type())

	for _, name := range optionNames(part.Options) {
		field, ok := fields[name]
		if !ok {
			return nil, &lifecycle.ManifestError{
				Part:   part.Name,
				Reason: fmt.Sprintf("plugin %q has no option %q (supported: %v)", part.Plugin, name, fieldNames(fields)),
			}
		}
		fv := value.Field(field.index)
		wantType, err := gocty.ImpliedType(fv.Interface())
		if err != nil {
			panic(fmt.Sprintf("plugin %q option %q: %v", part.Plugin, name, err))
		}
		converted, err := convert.Convert(part.Options[name], wantType)
		if err != nil {
			return nil, &lifecycle.ManifestError{
				Part:   part.Name,
				Reason: fmt.Sprintf("option %q must be %s", name, wantType.FriendlyName()),
				Err:    err,
			}
		}
		if err := gocty.FromCtyValue(converted, fv.Addr().Interface()); err != nil {
			return nil, &lifecycle.ManifestError{Part: part.Name, Reason: fmt.Sprintf("invalid value for option %q", name), Err: err}
		}
	}

	for _, name := range fieldNames(fields) {
		if fields[name].required {
			if v, ok := part.Options[name]; !ok || v.IsNull() {
				return nil, &lifecycle.ManifestError{Part: part.Name, Reason: fmt.Sprintf("plugin %q requires option %q", part.Plugin, name)}
			}
		}
	}
	return target, nil
}

func optionNames(options map[string]cty.Value) []string {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fieldNames(fields map[string]optionField) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
