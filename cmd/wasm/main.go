//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/nexusdeck/nexus/backend-go/internal/document"
	"github.com/nexusdeck/nexus/backend-go/internal/engine"
	"github.com/nexusdeck/nexus/backend-go/internal/export"
	"github.com/nexusdeck/nexus/backend-go/internal/geom"
)

var ed *engine.Editor

// onChange is the JS callback registered with setChangeListener.
var onChange js.Value

func main() {
	ed = engine.NewEditor(document.NewPresentation(document.KindSlideDeck, "local", time.Now()), nil)
	ed.OnChange(func(p *document.Presentation) {
		if onChange.Type() != js.TypeFunction {
			return
		}
		data, err := json.Marshal(p)
		if err != nil {
			return
		}
		onChange.Invoke(string(data))
	})

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	api.Set("loadDocument", js.FuncOf(loadDocument))
	api.Set("setChangeListener", js.FuncOf(setChangeListener))
	api.Set("setScale", js.FuncOf(setScale))
	api.Set("pointerDown", js.FuncOf(pointerDown))
	api.Set("pointerMove", js.FuncOf(pointerMove))
	api.Set("pointerUp", js.FuncOf(pointerUp))
	api.Set("pointerCancel", js.FuncOf(pointerCancel))
	api.Set("select", js.FuncOf(selectElement))
	api.Set("beginTextEdit", js.FuncOf(beginTextEdit))
	api.Set("editText", js.FuncOf(editText))
	api.Set("endTextEdit", js.FuncOf(endTextEdit))
	api.Set("addElement", js.FuncOf(addElement))
	api.Set("raise", js.FuncOf(raise))
	api.Set("lower", js.FuncOf(lower))
	api.Set("duplicate", js.FuncOf(duplicate))
	api.Set("delete", js.FuncOf(deleteElement))
	api.Set("addSlide", js.FuncOf(addSlide))
	api.Set("deleteSlide", js.FuncOf(deleteSlide))
	api.Set("selectSlide", js.FuncOf(selectSlide))
	api.Set("updateSlide", js.FuncOf(updateSlide))

	// --- Queries (frontend ← backend) ---
	api.Set("render", js.FuncOf(render))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("getDocument", js.FuncOf(getDocument))
	api.Set("getState", js.FuncOf(getState))

	js.Global().Set("nexusEditor", api)
	js.Global().Set("nexusWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func marshal(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return result(err)
	}
	return js.ValueOf(string(data))
}

func point(args []js.Value, from int) geom.Point {
	if len(args) < from+2 {
		return geom.Point{}
	}
	return geom.Point{X: args[from].Float(), Y: args[from+1].Float()}
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing document JSON"})
	}
	pres, err := export.ParseJSON([]byte(args[0].String()))
	if err != nil {
		return result(err)
	}
	ed.Load(pres)
	return result(nil)
}

func setChangeListener(this js.Value, args []js.Value) interface{} {
	if len(args) > 0 {
		onChange = args[0]
	}
	return nil
}

func setScale(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ed.SetScale(geom.Scale(args[0].Float()))
	return nil
}

// pointerDown(pointerId, x, y, handle?) hit-tests the point unless a resize
// handle name is given for the selected element.
func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	id := args[0].Int()
	at := point(args, 1)
	if len(args) > 3 && args[3].Type() == js.TypeString && ed.Selected() != "" {
		h, err := engine.ParseHandle(args[3].String())
		if err != nil {
			return result(err)
		}
		return result(ed.PointerDownHandle(id, ed.Selected(), h, at))
	}
	if hit, ok := ed.HitTest(at); ok {
		return result(ed.PointerDownElement(id, hit, at))
	}
	ed.PointerDownCanvas()
	return result(nil)
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	ed.PointerMove(args[0].Int(), point(args, 1))
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	return result(ed.PointerUp(args[0].Int(), point(args, 1)))
}

func pointerCancel(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ed.PointerCancel(args[0].Int())
	return nil
}

func selectElement(this js.Value, args []js.Value) interface{} {
	id := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		id = args[0].String()
	}
	return result(ed.Select(id))
}

func beginTextEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.BeginTextEdit(args[0].String()))
}

func editText(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.EditText(args[0].String()))
}

func endTextEdit(this js.Value, args []js.Value) interface{} {
	ed.EndTextEdit()
	return nil
}

// addElement(type, shape?, content?)
func addElement(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var shape, content string
	if len(args) > 1 {
		shape = args[1].String()
	}
	if len(args) > 2 {
		content = args[2].String()
	}
	el, err := ed.AddElement(document.ElementType(args[0].String()), document.ShapeType(shape), content)
	if err != nil {
		return result(err)
	}
	return marshal(el)
}

func raise(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.Raise(args[0].String()))
}

func lower(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.Lower(args[0].String()))
}

func duplicate(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	el, err := ed.Duplicate(args[0].String())
	if err != nil {
		return result(err)
	}
	return marshal(el)
}

func deleteElement(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.Delete(args[0].String()))
}

func addSlide(this js.Value, args []js.Value) interface{} {
	s, err := ed.AddSlide()
	if err != nil {
		return result(err)
	}
	return marshal(s)
}

func deleteSlide(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.DeleteSlide(args[0].Int()))
}

func selectSlide(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	return result(ed.SelectSlide(args[0].Int()))
}

// updateSlide(index, json) takes a partial slide update.
func updateSlide(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	var u engine.SlideUpdate
	if err := json.Unmarshal([]byte(args[1].String()), &u); err != nil {
		return result(err)
	}
	return result(ed.UpdateSlide(args[0].Int(), u))
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return marshal(ed.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	id, _ := ed.HitTest(point(args, 0))
	return js.ValueOf(id)
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return marshal(ed.Presentation())
}

func getState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(map[string]interface{}{
		"slideIndex": ed.SlideIndex(),
		"selected":   ed.Selected(),
		"editing":    ed.Editing(),
		"mode":       ed.Mode().String(),
	})
}
