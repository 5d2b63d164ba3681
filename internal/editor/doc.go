/*
Package editor is the host side of the rempl integration: a workspace with
one pane, the views that embed rempl clients and the plugin that wires them
to the transport.

A view is opened by an Opener, which creates an endpoint (normally a sandbox
frame) and hands it to the view before the client's scripts run. Once the
endpoint finishes its handshake the plugin subscribes to it and serves these
calls:

	setStatusBarContent(html)
	openFile(path[, line, column], cb)
	getContent(cb)
	publisherChanged(publisher)
	getHostInfo(cb)

Active pane changes are broadcast to every ready environment as

	{type: "DidChangeActivePaneItem", pane: {title, isEditor}}
*/
package editor
