package meta

import "github.com/chazu/hybridge/value"

// Describe exports mo as a class-info map, the shape a remote peer needs to
// build a proxy. Members are listed with their composite indices, inherited
// ones first:
//
//	{"className": "...", "superClass": "..." | none,
//	 "properties": [{"index", "name", "type", "readable", "writable"}...],
//	 "methods":    [{"index", "name", "params", "return"}...],
//	 "signals":    [{"index", "name", "params"}...],
//	 "enums":      {name: {key: value...}...}}
func Describe(mo *MetaObject) value.Value {
	info := value.NewMap()
	info.Set("className", value.FromString(mo.className))
	if mo.super != nil {
		info.Set("superClass", value.FromString(mo.super.className))
	} else {
		info.Set("superClass", value.Nil)
	}

	var props []value.Value
	for i := range mo.PropertyCount() {
		p, _ := mo.Property(i)
		props = append(props, value.FromEntries(
			value.Entry{Key: "index", Value: value.FromInt(int32(i))},
			value.Entry{Key: "name", Value: value.FromString(p.Name)},
			value.Entry{Key: "type", Value: value.FromString(p.Type.String())},
			value.Entry{Key: "readable", Value: value.FromBool(p.IsReadable())},
			value.Entry{Key: "writable", Value: value.FromBool(p.IsWritable())},
		))
	}

	var methods, signals []value.Value
	for i := range mo.MethodCount() {
		m, _ := mo.Method(i)
		params := make([]value.Value, len(m.Params))
		for j, k := range m.Params {
			params[j] = value.FromString(k.String())
		}
		entries := []value.Entry{
			{Key: "index", Value: value.FromInt(int32(i))},
			{Key: "name", Value: value.FromString(m.Name)},
			{Key: "params", Value: value.FromArray(params...)},
		}
		if m.IsSignal() {
			signals = append(signals, value.FromEntries(entries...))
			continue
		}
		entries = append(entries, value.Entry{Key: "return", Value: value.FromString(m.Return.String())})
		methods = append(methods, value.FromEntries(entries...))
	}

	enums := value.NewMap()
	for cur := mo; cur != nil; cur = cur.super {
		for _, e := range cur.enums {
			keys := value.NewMap()
			for j, k := range e.Keys {
				keys.Set(k, value.FromLong(e.Values[j]))
			}
			enums.Set(e.Name, keys)
		}
	}

	info.Set("properties", value.FromArray(props...))
	info.Set("methods", value.FromArray(methods...))
	info.Set("signals", value.FromArray(signals...))
	info.Set("enums", enums)
	return info
}
