package irc

import "strconv"

// Rank is the weight a membership carries in its channel. Higher ranks have
// authority over strictly lower ones.
type Rank int

const (
	RankNone   Rank = 0
	RankVoice  Rank = 10000
	RankHalfop Rank = 20000
	RankOp     Rank = 30000
	RankAdmin  Rank = 40000
	RankOwner  Rank = 50000
)

func (r Rank) String() string {
	switch r {
	case RankNone:
		return "none"
	case RankVoice:
		return "voice"
	case RankHalfop:
		return "halfop"
	case RankOp:
		return "op"
	case RankAdmin:
		return "admin"
	case RankOwner:
		return "owner"
	}
	return strconv.Itoa(int(r))
}

// PrefixMode is a channel mode granting a rank to a member
type PrefixMode struct {
	Letter byte
	Symbol byte
	Name   string
	Rank   Rank
}

// prefixModes is ordered from the highest rank down
var prefixModes = []PrefixMode{
	{Letter: 'q', Symbol: '~', Name: "founder", Rank: RankOwner},
	{Letter: 'a', Symbol: '&', Name: "admin", Rank: RankAdmin},
	{Letter: 'o', Symbol: '@', Name: "op", Rank: RankOp},
	{Letter: 'h', Symbol: '%', Name: "halfop", Rank: RankHalfop},
	{Letter: 'v', Symbol: '+', Name: "voice", Rank: RankVoice},
}

// PrefixByLetter returns the prefix mode for a mode letter
func PrefixByLetter(letter byte) (PrefixMode, bool) {
	for _, p := range prefixModes {
		if p.Letter == letter {
			return p, true
		}
	}
	return PrefixMode{}, false
}

// isupportPrefix renders the PREFIX token, e.g. (qaohv)~&@%+
func isupportPrefix() string {
	letters := make([]byte, 0, len(prefixModes))
	symbols := make([]byte, 0, len(prefixModes))
	for _, p := range prefixModes {
		letters = append(letters, p.Letter)
		symbols = append(symbols, p.Symbol)
	}
	return "(" + string(letters) + ")" + string(symbols)
}

// ParseRank accepts a rank name such as "op" or a numeric weight
func ParseRank(s string) (Rank, bool) {
	switch s {
	case "none":
		return RankNone, true
	case "voice":
		return RankVoice, true
	case "halfop":
		return RankHalfop, true
	case "op":
		return RankOp, true
	case "admin":
		return RankAdmin, true
	case "owner", "founder":
		return RankOwner, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return RankNone, false
	}
	return Rank(n), true
}
