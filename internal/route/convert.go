// Package route implements the Transport layer: translating filtered,
// remapped InputEvents into whatever the configured routing actually speaks
// to the guest — QMP's input-send-event wire command, or a uinput device
// handed to QEMU's input-linux/virtio-input-host-device backends.
package route

import "github.com/arcnmx/screenstub-go/internal/inputevent"

// qmpInputEvent is one entry of input-send-event's "events" array.
type qmpInputEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type qmpKeyValue struct {
	Type string `json:"type"`
	Data int    `json:"data"`
}

type qmpKeyEventData struct {
	Down bool        `json:"down"`
	Key  qmpKeyValue `json:"key"`
}

type qmpBtnEventData struct {
	Down   bool   `json:"down"`
	Button string `json:"button"`
}

type qmpMoveEventData struct {
	Axis  string `json:"axis"`
	Value int32  `json:"value"`
}

// buttonNames is the exact BTN_* -> QMP button-name mapping the original
// carries (route.rs convert_event): wheel buttons map onto QMP's synthetic
// wheel-up/wheel-down names, not a literal "wheel"/"gear-up".
var buttonNames = map[inputevent.Key]string{
	inputevent.ButtonLeft:    "left",
	inputevent.ButtonMiddle:  "middle",
	inputevent.ButtonRight:   "right",
	inputevent.ButtonWheel:   "wheel-down",
	inputevent.ButtonGearUp:  "wheel-up",
	inputevent.ButtonSide:    "side",
	inputevent.ButtonExtra:   "extra",
}

var relAxisNames = map[inputevent.RelativeAxis]string{
	inputevent.RelX: "x",
	inputevent.RelY: "y",
}

var absAxisNames = map[inputevent.AbsoluteAxis]string{
	inputevent.AbsX: "x",
	inputevent.AbsY: "y",
}

// convertEvent translates one InputEvent into its QMP input-send-event wire
// form. It returns ok=false for anything QMP input injection can't express:
// KeyReserved, unmapped buttons, and relative/absolute axes other than X/Y
// (the original drops these the same way, via convert_event's catch-all arm).
func convertEvent(e inputevent.InputEvent) (qmpInputEvent, bool) {
	switch e.Kind() {
	case inputevent.KindKey:
		key, state := e.Key()
		if key == inputevent.KeyReserved {
			return qmpInputEvent{}, false
		}
		return qmpInputEvent{Type: "key", Data: qmpKeyEventData{
			Down: state != inputevent.KeyReleased,
			Key:  qmpKeyValue{Type: "number", Data: int(key)},
		}}, true

	case inputevent.KindButton:
		key, state := e.Key()
		name, ok := buttonNames[key]
		if !ok {
			return qmpInputEvent{}, false
		}
		return qmpInputEvent{Type: "btn", Data: qmpBtnEventData{
			Down:   state != inputevent.KeyReleased,
			Button: name,
		}}, true

	case inputevent.KindRelative:
		axis, ok := relAxisNames[inputevent.RelativeAxis(e.Code)]
		if !ok {
			return qmpInputEvent{}, false
		}
		return qmpInputEvent{Type: "rel", Data: qmpMoveEventData{Axis: axis, Value: e.Value}}, true

	case inputevent.KindAbsolute:
		axis, ok := absAxisNames[inputevent.AbsoluteAxis(e.Code)]
		if !ok {
			return qmpInputEvent{}, false
		}
		return qmpInputEvent{Type: "abs", Data: qmpMoveEventData{Axis: axis, Value: e.Value}}, true

	default:
		return qmpInputEvent{}, false
	}
}
