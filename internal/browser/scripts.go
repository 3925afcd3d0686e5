// internal/browser/scripts.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Function declarations called with `this` bound to a remote object.
const (
	// describeElementsJS turns an array of elements into plain descriptions.
	describeElementsJS = `function() {
	return this.map(function(el) {
		var attrs = {};
		for (var i = 0; el.attributes && i < el.attributes.length; i++) {
			attrs[el.attributes[i].name] = el.attributes[i].value;
		}
		var text = typeof el.innerText === "string" ? el.innerText : (el.textContent || "");
		return {
			tag: el.tagName || "",
			attrs: attrs,
			text: text.trim(),
			value: typeof el.value === "string" ? el.value.trim() : ""
		};
	});
}`

	shadowRootJS = `function() { return this.shadowRoot; }`

	// documentAliveJS fails once the document's world has been torn down.
	documentAliveJS = `function() { return this.readyState; }`

	contentDocumentJS = `function() {
	try { return this.contentDocument; } catch (e) { return null; }
}`

	// hitTestJS returns why a pointer click at the element's center would miss
	// it, or an empty string when it would land.
	hitTestJS = `function() {
	if (!this.isConnected) return "detached";
	var r = this.getBoundingClientRect();
	if (r.width === 0 || r.height === 0) return "zero size";
	var root = this.getRootNode();
	var probe = typeof root.elementFromPoint === "function" ? root : this.ownerDocument;
	var hit = probe.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	if (hit && hit !== this && !this.contains(hit)) {
		return "obscured by <" + hit.tagName.toLowerCase() + ">";
	}
	return "";
}`

	scriptClickJS = `function() { this.click(); }`

	focusAndClearJS = `function() {
	this.focus();
	this.value = "";
	this.dispatchEvent(new Event("input", { bubbles: true }));
}`
)

// elementDescription mirrors one entry produced by describeElementsJS.
type elementDescription struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs"`
	Text  string            `json:"text"`
	Value string            `json:"value"`
}

// ref builds the reference for the element behind handle.
func (d elementDescription) ref(handle runtime.RemoteObjectID) schemas.ElementRef {
	return schemas.ElementRef{
		Tag:        d.Tag,
		Attributes: d.Attrs,
		Text:       strings.TrimSpace(d.Text),
		Value:      strings.TrimSpace(d.Value),
		Handle:     handle,
	}
}

// jsonEncode renders v as a JavaScript literal for embedding in a script.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func querySelectorAllJS(selector string) string {
	return fmt.Sprintf(`function() { return Array.from(this.querySelectorAll(%s)); }`, jsonEncode(selector))
}

func indexJS(i int) string {
	return fmt.Sprintf(`function() { return this[%d]; }`, i)
}

func readAttributeJS(name string) string {
	n := jsonEncode(name)
	return fmt.Sprintf(`function() { return this.hasAttribute(%s) ? this.getAttribute(%s) : null; }`, n, n)
}

// setValueJS forces the value when synthetic typing did not reach the element.
func setValueJS(text string) string {
	return fmt.Sprintf(`function() {
	if (this.value !== %[1]s) {
		this.value = %[1]s;
		this.dispatchEvent(new Event("input", { bubbles: true }));
	}
	this.dispatchEvent(new Event("change", { bubbles: true }));
}`, jsonEncode(text))
}
