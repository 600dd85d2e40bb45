// Package factory provides a small generic registry used to instantiate
// pluggable modules (metrics sinks, run log stores) from configuration. A
// module is described by a type string and a map of raw settings; its
// factory decodes the settings into a typed struct.
//
// Example usage:
//
//	reg := factory.NewRegistry[runlog.Store]()
//	reg.Register("jsonl", func(conf map[string]any) (runlog.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewJSONLStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "runs.jsonl"}})
package factory
