/*
Package markov provides first-order Markov chain models over the nucleotide
alphabet {A, C, G, T} for classifying genomic sequence.

A Model is trained from newline-delimited records (or a single raw sequence),
or wraps a precomputed transition table. Models score query sequences either
as a plain probability or as a sum of natural logarithms; the two domains are
kept apart by the Probability and LogProbability types, each of which knows
how to form a log ratio against another score of the same domain.

Trained models can be persisted in a SQLite database through a Store, which
also supports JSON export and import, pruning of rare transitions and summary
statistics. Reference returns the pre-trained CpG island models built from
hg19 chromosome 22.
*/
package markov
