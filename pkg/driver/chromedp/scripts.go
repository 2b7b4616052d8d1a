// pkg/driver/chromedp/scripts.go
package chromedp

// Function declarations passed to Runtime.callFunctionOn; `this` is the node
// (or the document for page-wide lookups). Arguments are spliced in as JSON literals.
const (
	jsStaleGuard = `if (this.nodeType === 1 && !this.isConnected) { throw new Error("stale element reference"); }`

	jsQueryAll = `function() {
	` + jsStaleGuard + `
	var by = %s, value = %s;
	if (by === "link text") {
		return Array.from(this.querySelectorAll("a")).filter(function(a) {
			return (a.innerText || a.textContent || "").trim() === value;
		});
	}
	return Array.from(this.querySelectorAll(value));
}`

	jsDisplayed = `function() {
	` + jsStaleGuard + `
	var style = window.getComputedStyle(this);
	if (style.visibility === "hidden" || style.display === "none") { return false; }
	return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length);
}`

	jsClickPoint = `function() {
	` + jsStaleGuard + `
	this.scrollIntoView({block: "center", inline: "center"});
	var r = this.getBoundingClientRect();
	var style = window.getComputedStyle(this);
	var displayed = style.visibility !== "hidden" && style.display !== "none" && r.width > 0 && r.height > 0;
	return {X: r.left + r.width / 2, Y: r.top + r.height / 2, Displayed: displayed};
}`

	jsFocus = `function() {
	` + jsStaleGuard + `
	this.focus();
}`

	jsText = `function() {
	` + jsStaleGuard + `
	return (this.innerText !== undefined ? this.innerText : this.textContent) || "";
}`

	jsAttribute = `function() {
	` + jsStaleGuard + `
	var name = %s;
	if (name === "value" && "value" in this) { return this.value == null ? null : String(this.value); }
	return this.getAttribute(name);
}`

	jsClear = `function() {
	` + jsStaleGuard + `
	if (this.readOnly || this.disabled) { throw new Error("invalid element state: element is not editable"); }
	if ("value" in this) {
		this.value = "";
	} else if (this.isContentEditable) {
		this.textContent = "";
	} else {
		throw new Error("invalid element state: element is not editable");
	}
	this.dispatchEvent(new Event("input", {bubbles: true}));
	this.dispatchEvent(new Event("change", {bubbles: true}));
}`
)
