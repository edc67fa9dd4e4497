// Package pipeline orchestrates the compilation chain: a principle change is
// synthesized into a rule draft, the draft is verified, surviving rules go
// through conflict detection and resolution, and clean rules are promoted
// into the next active generation. Human verdicts from the review queue
// re-enter the chain through the installed handler.
package pipeline
