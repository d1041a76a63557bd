package markov

// ReferenceAverageLength is the mean CpG island length on hg19 chromosome 22.
const ReferenceAverageLength = 566

// CpGInside is the transition table trained on the annotated CpG islands of
// hg19 chromosome 22, with two decimal precision.
var CpGInside = Table{
	{0.19, 0.28, 0.40, 0.14},
	{0.19, 0.36, 0.25, 0.20},
	{0.17, 0.33, 0.36, 0.14},
	{0.09, 0.34, 0.38, 0.19},
}

// CpGOutside is the transition table trained on random island-sized excerpts
// of hg19 chromosome 22 outside the annotated islands.
var CpGOutside = Table{
	{0.29, 0.20, 0.29, 0.23},
	{0.32, 0.29, 0.07, 0.31},
	{0.26, 0.23, 0.29, 0.21},
	{0.18, 0.23, 0.29, 0.29},
}

// Reference returns the pre-trained CpG island inside and outside models.
func Reference() (inside, outside *Model) {
	var err error
	if inside, err = FromPrecomputed(CpGInside, ReferenceAverageLength); err != nil {
		panic(err)
	}
	if outside, err = FromPrecomputed(CpGOutside, ReferenceAverageLength); err != nil {
		panic(err)
	}
	return inside, outside
}
