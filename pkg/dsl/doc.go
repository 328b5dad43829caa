/*
Package dsl provides a Go DSL for programmatically constructing phase graphs.

It allows developers to define session flows using a type-safe, fluent builder
pattern instead of relying on external YAML or JSON files. This is useful for
unit testing, embedding presets and leveraging IDE autocompletion.

Example usage:

	b := dsl.New("intake")

	b.Add("deciding_issue").
		Require("selected_issue", schema.String()).
		Require("issue_intensity", schema.Integer().Between(0, 10)).
		Go("checking_in")

	b.Add("checking_in").
		Require("suds_current", schema.Integer().Between(0, 10)).
		Branch(condition.SUDSZero, "done").
		Go("deciding_issue")

	b.Add("done").Terminal()

	g, err := b.Build()
*/
package dsl
