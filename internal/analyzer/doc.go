// Package analyzer detects style rules that learn something about the client
// and leak it through a network fetch.
//
// A scan runs in four stages:
//
//  1. Walker flattens every stylesheet into RuleEntry values in depth-first
//     document order, propagating the condition text of enclosing
//     conditional rules as the entry group.
//  2. Classifier gives each entry its sources (dictionary keywords found in
//     the rule's own condition, media or font-face text) and its sink (the
//     URLs the rule fetches).
//  3. Associate links every sink URL to sources in the same rule, else in
//     rules with the same selector, else in rules with the same group.
//  4. Aggregate deduplicates the linked claims, scores them and decides the
//     verdict.
//
// Scanner ties the stages together and keeps the most recent report.
package analyzer
