package browser

// Element-scoped scripts shared by both backends. Each is a function
// declaration invoked with `this` bound to the node.

// detachedMessage is thrown by scripts run on a node that has left the
// document. It matches a stale marker so Classify reports ErrStale.
const detachedMessage = "Node is detached from document"

const connectedJS = `function() {
	if (!this.isConnected) throw new Error('` + detachedMessage + `');
	return true;
}`

const clickableJS = `function() {
	if (!this.isConnected) throw new Error('` + detachedMessage + `');
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	if (s.display === 'none' || s.visibility === 'hidden' || r.width === 0 || r.height === 0) return false;
	if (this.disabled) return false;
	const x = r.left + r.width / 2, y = r.top + r.height / 2;
	const top = document.elementFromPoint(x, y);
	return !top || top === this || this.contains(top);
}`

const computedStyleJS = `function(p) { return window.getComputedStyle(this).getPropertyValue(p); }`

const attributeJS = `function(n) { const v = this.getAttribute(n); return v === null ? '' : v; }`

const outerHTMLJS = `function() { return this.outerHTML; }`

const clearJS = `function() {
	this.value = '';
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

const boundsJS = `function() {
	const r = this.getBoundingClientRect();
	return [Math.round(r.left), Math.round(r.top), Math.round(r.right), Math.round(r.bottom)];
}`
