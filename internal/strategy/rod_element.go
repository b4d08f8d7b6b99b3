package strategy

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"quenito/internal/types"
)

// RodElement adapts a live rod element to the Element interface. The kind
// decides how each strategy applies: radios and checkboxes are clicked and
// verified checked, dropdowns select by option text, text inputs are filled
// and verified.
type RodElement struct {
	el   *rod.Element
	page *rod.Page
	kind types.ElementKind
}

// NewRodElement wraps a rod element of the given kind.
func NewRodElement(page *rod.Page, el *rod.Element, kind types.ElementKind) *RodElement {
	return &RodElement{el: el, page: page, kind: kind}
}

// Apply implements Element.
func (r *RodElement) Apply(strategy types.StrategyName, value string) error {
	var err error
	switch strategy {
	case types.StrategyClick:
		err = r.directClick(value)
	case types.StrategyForceClick:
		err = r.forceClick(value)
	case types.StrategyScript:
		err = r.scriptClick(value)
	case types.StrategyKeyboard:
		err = r.keyboardFocus(value)
	case types.StrategyCoordinate:
		err = r.coordinateClick(value)
	default:
		return fmt.Errorf("unknown strategy: %s", strategy)
	}
	if err != nil {
		return err
	}
	return r.verify(value)
}

// directClick is the plain interaction path.
func (r *RodElement) directClick(value string) error {
	switch r.kind {
	case types.ElementDropdown:
		return r.el.Select([]string{value}, true, rod.SelectorTypeText)
	case types.ElementText:
		if err := r.el.SelectAllText(); err != nil {
			return fmt.Errorf("select text: %w", err)
		}
		return r.el.Input(value)
	default:
		return r.el.Click(proto.InputMouseButtonLeft, 1)
	}
}

// forceClick scrolls the element into view first, then clicks without
// waiting for interactability. Overlays and sticky headers defeat the plain
// path on some platforms.
func (r *RodElement) forceClick(value string) error {
	if r.kind == types.ElementDropdown || r.kind == types.ElementText {
		if err := r.el.ScrollIntoView(); err != nil {
			return fmt.Errorf("scroll into view: %w", err)
		}
		return r.directClick(value)
	}
	if err := r.el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	return r.el.Click(proto.InputMouseButtonLeft, 1)
}

// scriptClick dispatches the interaction from page script, bypassing the
// input pipeline entirely.
func (r *RodElement) scriptClick(value string) error {
	switch r.kind {
	case types.ElementDropdown:
		_, err := r.el.Eval(`(v) => {
			for (const opt of this.options) {
				if (opt.text.trim() === v) {
					this.value = opt.value;
					this.dispatchEvent(new Event('change', { bubbles: true }));
					return;
				}
			}
			throw new Error('option not found');
		}`, value)
		return err
	case types.ElementText:
		_, err := r.el.Eval(`(v) => {
			this.value = v;
			this.dispatchEvent(new Event('input', { bubbles: true }));
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}`, value)
		return err
	default:
		_, err := r.el.Eval(`() => this.click()`)
		return err
	}
}

// keyboardFocus drives the element through focus and key presses.
func (r *RodElement) keyboardFocus(value string) error {
	if err := r.el.Focus(); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	switch r.kind {
	case types.ElementText:
		return r.page.Keyboard.Type([]input.Key(value)...)
	case types.ElementDropdown:
		// Typing the first characters selects the matching option.
		return r.page.Keyboard.Type([]input.Key(value)...)
	default:
		return r.page.Keyboard.Press(input.Key(' '))
	}
}

// coordinateClick moves the real mouse to a point inside the element. Last
// resort for controls hidden behind styled replacements.
func (r *RodElement) coordinateClick(value string) error {
	if r.kind == types.ElementText || r.kind == types.ElementDropdown {
		shape, err := r.el.Shape()
		if err != nil {
			return fmt.Errorf("element shape: %w", err)
		}
		pt := shape.OnePointInside()
		if pt == nil {
			return fmt.Errorf("element has no visible area")
		}
		if err := r.page.Mouse.MoveTo(*pt); err != nil {
			return fmt.Errorf("mouse move: %w", err)
		}
		if err := r.page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("mouse click: %w", err)
		}
		if r.kind == types.ElementText {
			return r.page.Keyboard.Type([]input.Key(value)...)
		}
		return r.el.Select([]string{value}, true, rod.SelectorTypeText)
	}

	shape, err := r.el.Shape()
	if err != nil {
		return fmt.Errorf("element shape: %w", err)
	}
	pt := shape.OnePointInside()
	if pt == nil {
		return fmt.Errorf("element has no visible area")
	}
	if err := r.page.Mouse.MoveTo(*pt); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	return r.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// verify confirms the interaction took effect.
func (r *RodElement) verify(value string) error {
	switch r.kind {
	case types.ElementRadio, types.ElementCheckbox:
		res, err := r.el.Eval(`() => this.checked === true`)
		if err != nil {
			return fmt.Errorf("verify checked: %w", err)
		}
		if !res.Value.Bool() {
			return fmt.Errorf("element not checked after interaction")
		}
	case types.ElementText:
		res, err := r.el.Eval(`() => this.value`)
		if err != nil {
			return fmt.Errorf("verify value: %w", err)
		}
		if res.Value.Str() == "" {
			return fmt.Errorf("text input still empty after interaction")
		}
	case types.ElementDropdown:
		res, err := r.el.Eval(`() => this.selectedIndex >= 0 && this.value !== ''`)
		if err != nil {
			return fmt.Errorf("verify selection: %w", err)
		}
		if !res.Value.Bool() {
			return fmt.Errorf("no option selected after interaction")
		}
	}
	return nil
}
