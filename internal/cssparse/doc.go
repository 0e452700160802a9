// Package cssparse turns stylesheet text into a cssom rule tree.
//
// It tokenizes with the tdewolff CSS lexer and then recognises rule
// boundaries itself: qualified rules, conditional group rules (@media,
// @supports, @container), grouping rules without a condition (@layer,
// @scope, ...), declaration blocks (@font-face, @page), @keyframes and
// statement at-rules such as @import. It is not a full CSS grammar. Values
// are kept as text, which is all the analyzer inspects.
package cssparse
