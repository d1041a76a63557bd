// Package scan slides a fixed-width window across a sequence, scoring every
// window as the log ratio of an inside and an outside Markov model, and calls
// candidate peaks on the resulting score series.
package scan
