package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Settings are addressed by their JSON field names joined with dots.
// Roster entries are addressed by index: "roster.0.playerId".

// fieldKinds maps every settable leaf of Config to its Go kind. List
// elements appear as "*".
var fieldKinds = schema(reflect.TypeOf(Config{}), "", map[string]reflect.Kind{})

func schema(t reflect.Type, prefix string, out map[string]reflect.Kind) map[string]reflect.Kind {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		path := joinPath(prefix, name)
		switch {
		case f.Type.Kind() == reflect.Struct:
			schema(f.Type, path, out)
		case f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.Struct:
			schema(f.Type.Elem(), path+".*", out)
		default:
			out[path] = f.Type.Kind()
		}
	}
	return out
}

// kindOf reports the kind of the leaf at path, resolving list indexes.
func kindOf(path string) (reflect.Kind, bool) {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = "*"
		}
	}
	k, ok := fieldKinds[strings.Join(parts, ".")]
	return k, ok
}

// GetByPath retrieves a config value by dot path (e.g. "upstream.profileId").
func GetByPath(cfg *Config, path string) (any, error) {
	if _, ok := kindOf(path); !ok {
		return nil, fmt.Errorf("unknown config path: %s", path)
	}
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	parent, key, err := walk(m, path)
	if err != nil {
		return nil, err
	}
	return parent.get(key), nil
}

// SetByPath parses value according to the setting's type and stores it.
// The section the path belongs to is validated (with environment tokens
// applied) before cfg is changed, so a rejected edit leaves cfg untouched.
func SetByPath(cfg *Config, path string, value any) error {
	kind, ok := kindOf(path)
	if !ok {
		return fmt.Errorf("unknown config path: %s", path)
	}
	v, err := coerce(kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	m, err := tree(cfg)
	if err != nil {
		return err
	}
	parent, key, err := walk(m, path)
	if err != nil {
		return err
	}
	parent.set(key, v)

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := validateSection(&next, path); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// validateSection runs Validate on an env-resolved copy of cfg and reports
// only failures in the section path belongs to.
func validateSection(cfg *Config, path string) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	resolved, err := Parse([]byte(ExpandEnvVars(string(data))), false)
	if err != nil {
		return err
	}
	ApplyEnv(resolved)

	section := sectionOf(path)
	var errs []string
	for _, p := range problems(resolved) {
		if p == section || strings.HasPrefix(p, section+".") || strings.HasPrefix(p, section+":") {
			errs = append(errs, p)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid value for %s:\n  - %s", path, strings.Join(errs, "\n  - "))
	}
	return nil
}

// sectionOf returns the validation scope of path: the channel for
// channel settings, otherwise the top-level section.
func sectionOf(path string) string {
	parts := strings.SplitN(path, ".", 3)
	if parts[0] == "channels" && len(parts) > 1 {
		return parts[0] + "." + parts[1]
	}
	return parts[0]
}

func coerce(kind reflect.Kind, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	switch kind {
	case reflect.String:
		return s, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", s)
		}
		return b, nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", s)
		}
		return n, nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", s)
		}
		return f, nil
	case reflect.Slice:
		var items []any
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported setting type %s", kind)
	}
}

// node is a map or list inside the generic config tree.
type node struct {
	m    map[string]any
	list []any
}

func (n node) get(key string) any {
	if n.m != nil {
		return n.m[key]
	}
	i, _ := strconv.Atoi(key)
	return n.list[i]
}

func (n node) set(key string, v any) {
	if n.m != nil {
		n.m[key] = v
		return
	}
	i, _ := strconv.Atoi(key)
	n.list[i] = v
}

// walk descends to the container holding the last element of path. List
// indexes must address an existing element.
func walk(m map[string]any, path string) (node, string, error) {
	parts := strings.Split(path, ".")
	cur := node{m: m}
	for i, key := range parts {
		if cur.list != nil {
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(cur.list) {
				return node{}, "", fmt.Errorf("index out of range at %s", strings.Join(parts[:i+1], "."))
			}
		}
		if i == len(parts)-1 {
			return cur, key, nil
		}
		switch child := cur.get(key).(type) {
		case map[string]any:
			cur = node{m: child}
		case []any:
			cur = node{list: child}
		case nil:
			if _, err := strconv.Atoi(parts[i+1]); err == nil {
				return node{}, "", fmt.Errorf("index out of range at %s", strings.Join(parts[:i+2], "."))
			}
			fresh := map[string]any{}
			cur.set(key, fresh)
			cur = node{m: fresh}
		default:
			return node{}, "", fmt.Errorf("cannot traverse into %T at %s", child, key)
		}
	}
	return node{}, "", fmt.Errorf("empty path")
}

func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Sanitize returns a copy of the config with channel tokens masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Roster = append(out.Roster[:0:0], cfg.Roster...)
	out.Channels.Telegram.AllowFrom = append(out.Channels.Telegram.AllowFrom[:0:0], cfg.Channels.Telegram.AllowFrom...)
	for _, tok := range []*string{
		&out.Channels.Discord.Token,
		&out.Channels.Telegram.Token,
		&out.Channels.Slack.BotToken,
		&out.Channels.Slack.AppToken,
		&out.Channels.Webhook.Secret,
	} {
		*tok = mask(*tok)
	}
	return &out
}

// mask keeps a short prefix and suffix of long secrets. ${VAR} references
// are shown as-is.
func mask(s string) string {
	switch {
	case s == "", strings.HasPrefix(s, "${"):
		return s
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths returns every setting path with its current value. Roster
// entries are expanded per index.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	result := make(map[string]any)
	flatten("", m, result)
	for path := range fieldKinds {
		if !strings.Contains(path, "*") {
			if _, ok := result[path]; !ok {
				result[path] = zeroFor(fieldKinds[path])
			}
		}
	}
	return result
}

// SortedPaths returns the keys of ListPaths in order.
func SortedPaths(cfg *Config) []string {
	paths := ListPaths(cfg)
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(prefix string, v any, result map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			flatten(joinPath(prefix, k), child, result)
		}
	case []any:
		if len(val) > 0 {
			if _, isObj := val[0].(map[string]any); isObj {
				for i, child := range val {
					flatten(joinPath(prefix, strconv.Itoa(i)), child, result)
				}
				return
			}
		}
		result[prefix] = val
	default:
		result[prefix] = val
	}
}

func zeroFor(k reflect.Kind) any {
	switch k {
	case reflect.String:
		return ""
	case reflect.Bool:
		return false
	case reflect.Slice:
		return []any{}
	default:
		return 0
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
