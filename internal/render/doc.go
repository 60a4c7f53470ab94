// Package render turns a view file and its variables into text.
//
// The dispatcher only depends on the Renderer interface. TemplateRenderer is
// the default implementation: Go text/template with the sprig function
// library, plus a helper function that calls the request's view helpers:
//
//	<h1>{{ .title | upper }}</h1>
//	{{ helper "format_date" .created }}
package render
