package markov

// Alphabet lists the nucleotide symbols in table order.
const Alphabet = "ACGT"

// Size is the number of symbols in the alphabet.
const Size = len(Alphabet)

// UniformPrior is the probability assigned to the first symbol of a query.
const UniformPrior = 0.25

var symbolIndex = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < Size; i++ {
		idx[Alphabet[i]] = int8(i)
		idx[Alphabet[i]+'a'-'A'] = int8(i)
	}
	return idx
}()

// Index returns the table index of a nucleotide. Lower case symbols map to
// the same index as their upper case form. The boolean is false for any
// symbol outside the alphabet.
func Index(b byte) (int, bool) {
	i := symbolIndex[b]
	return int(i), i >= 0
}

// Symbol returns the nucleotide at table index i.
func Symbol(i int) byte {
	return Alphabet[i]
}
