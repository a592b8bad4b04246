// Package logs tails biolabel.log for the CLI. Reads resume from a byte
// offset so follow mode only ever returns whole new lines, and an optional
// substring filter narrows output to one invocation's run ID.
package logs
