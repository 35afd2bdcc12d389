// Package factory provides a small generic registry used to build pluggable
// components (metrics sinks, activation log stores) from configuration.
// Components are selected by a type string and receive a map of raw settings
// that factories decode into typed structs.
//
// Example usage:
//
//	reg := factory.NewRegistry[logging.LogStore]()
//	reg.Register("jsonl", func(conf map[string]any) (logging.LogStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return logging.NewJSONLStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "act.jsonl"}})
package factory
