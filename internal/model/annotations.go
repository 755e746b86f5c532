package model

// ArgumentLabel is a BIO tag assigned to a token by an argument tagger.
type ArgumentLabel string

const (
	LabelOther              ArgumentLabel = "O"
	LabelClaimBegin         ArgumentLabel = "C-B"
	LabelClaimInside        ArgumentLabel = "C-I"
	LabelPremiseBegin       ArgumentLabel = "P-B"
	LabelPremiseInside      ArgumentLabel = "P-I"
	LabelMajorClaimBegin    ArgumentLabel = "MC-B"
	LabelMajorClaimInside   ArgumentLabel = "MC-I"
	LabelMajorPremiseBegin  ArgumentLabel = "MP-B"
	LabelMajorPremiseInside ArgumentLabel = "MP-I"
)

// IsClaim reports whether the label marks a (major) claim token.
func (l ArgumentLabel) IsClaim() bool {
	switch l {
	case LabelClaimBegin, LabelClaimInside, LabelMajorClaimBegin, LabelMajorClaimInside:
		return true
	}
	return false
}

// IsPremise reports whether the label marks a (major) premise token.
func (l ArgumentLabel) IsPremise() bool {
	switch l {
	case LabelPremiseBegin, LabelPremiseInside, LabelMajorPremiseBegin, LabelMajorPremiseInside:
		return true
	}
	return false
}

// ArgumentTag is one tagged token.
type ArgumentTag struct {
	Token       string        `json:"token"`
	Label       ArgumentLabel `json:"label"`
	Probability float64       `json:"prob"`
}

// ArgumentSentence is the tagged token sequence of one sentence.
type ArgumentSentence []ArgumentTag

// ArgumentSentences is the tagged sentences of one passage.
type ArgumentSentences []ArgumentSentence

// QualitySentence is a sentence with its argument quality score.
type QualitySentence struct {
	Content string  `json:"content"`
	Quality float64 `json:"quality"`
}

// StanceSentence is a sentence with its stance score. Positive values favour the first
// comparative object, negative values the second.
type StanceSentence struct {
	Content string  `json:"content"`
	Stance  float64 `json:"stance"`
}

// Annotations are the optional tagging results attached to a ranked item.
type Annotations struct {
	// Arguments holds tagged sentences per argument tagger model.
	Arguments map[string]ArgumentSentences `json:"arguments,omitempty"`
	Qualities []QualitySentence            `json:"qualities,omitempty"`
	Stances   []StanceSentence             `json:"stances,omitempty"`
}

// HasArguments reports whether argument tags are attached.
func (a Annotations) HasArguments() bool {
	return a.Arguments != nil
}

// HasQualities reports whether quality scores are attached.
func (a Annotations) HasQualities() bool {
	return a.Qualities != nil
}

// HasStances reports whether stance scores are attached.
func (a Annotations) HasStances() bool {
	return a.Stances != nil
}

// AverageQuality returns the mean sentence quality. The second result is false when no
// quality annotation is attached or it holds no sentences.
func (a Annotations) AverageQuality() (float64, bool) {
	if len(a.Qualities) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range a.Qualities {
		sum += s.Quality
	}
	return sum / float64(len(a.Qualities)), true
}

// AverageStance returns the mean sentence stance. The second result is false when no stance
// annotation is attached or it holds no sentences.
func (a Annotations) AverageStance() (float64, bool) {
	if len(a.Stances) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range a.Stances {
		sum += s.Stance
	}
	return sum / float64(len(a.Stances)), true
}

// Stance returns the average stance, treating untagged items as neutral.
func (a Annotations) Stance() float64 {
	stance, _ := a.AverageStance()
	return stance
}
