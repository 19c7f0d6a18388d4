package domain

// Result is the number of ballots a nominee received in a round
type Result struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TallyView is what participants see of the current round
type TallyView struct {
	Revealed  bool     `json:"revealed"` // False while the round is still open
	VoteCount int      `json:"voteCount"`
	Voters    []string `json:"voters"`
	Results   []Result `json:"results"`
	MaxCount  int      `json:"maxCount"`
	Winners   []string `json:"winners"`
}
