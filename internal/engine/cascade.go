package engine

import "github.com/nerrad567/gray-logic-appliance-bridge/internal/field"

// cascade re-derives dependent registers after a write.
//
// Registers are visited in declared order. Each cached one is re-run
// through the inbound path, then its own attachment is followed one level
// deeper. A register never seen is not re-derived, but its static
// attachment is still followed so depth keeps advancing. There is no
// visited set: the depth limit alone ends cycles.
func (e *Engine) cascade(ids []field.ID, depth int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := e.checkDepth(depth); err != nil {
		return err
	}

	for _, id := range ids {
		raw, known := e.cache.Get(id)
		if known {
			if err := e.onRawUpdate(id, raw, depth); err != nil {
				return err
			}
		}

		d, ok := e.registry.ByID(id)
		if !ok {
			continue
		}
		if err := e.cascade(d.Attach.Resolve(raw, known), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeContext is handed to write transforms.
type writeContext struct {
	engine *Engine
	depth  int
}

func (c *writeContext) Raw(id field.ID) (int, bool) {
	return c.engine.cache.Get(id)
}

func (c *writeContext) SetProperty(name string, v field.Value) error {
	return c.engine.setProperty(name, v, c.depth+1)
}

// callbackContext is handed to read callbacks.
type callbackContext struct {
	engine *Engine
	depth  int
}

func (c *callbackContext) Raw(id field.ID) (int, bool) {
	return c.engine.cache.Get(id)
}

func (c *callbackContext) Reprocess(id field.ID) error {
	raw, ok := c.engine.cache.Get(id)
	if !ok {
		return nil
	}
	return c.engine.onRawUpdate(id, raw, c.depth+1)
}
