package types

import (
	"fmt"
	"regexp"
	"strconv"
)

// Op is a parsed mock-VM opcode invocation, shared by Regular, Dependent
// and CAT transaction kinds.
type Op struct {
	// Credit is true for "credit <account> <amount>", false for
	// "send <from> <to> <amount>".
	Credit bool
	From   AccountID // unused when Credit
	To     AccountID
	Amount uint64
}

// Kind tags which of the four wire shapes a transaction's data matched.
type Kind int

const (
	KindRegular Kind = iota
	KindDependent
	KindCAT
	KindStatusUpdate
)

// ParsedData is the result of validating and decoding a transaction's data
// string against the grammar in spec §6. Exactly one of the Op/StatusUpdate
// fields is meaningful, selected by Kind.
type ParsedData struct {
	Kind Kind
	Op   Op

	// Dependent/StatusUpdate only.
	CATId CATId

	// StatusUpdate only.
	Decision StatusLimited
}

var (
	idPattern      = `[A-Za-z0-9_-]+`
	creditPattern  = `credit (\d+) (\d+)`
	sendPattern    = `send (\d+) (\d+) (\d+)`
	catIDSuffix    = `\.CAT_ID:(` + idPattern + `)`
	regularRe      = regexp.MustCompile(`^REGULAR\.(?:` + creditPattern + `|` + sendPattern + `)$`)
	dependentRe    = regexp.MustCompile(`^DEPENDENT\.(?:` + creditPattern + `|` + sendPattern + `)` + catIDSuffix + `$`)
	catRe          = regexp.MustCompile(`^CAT\.(?:` + creditPattern + `|` + sendPattern + `)$`)
	statusUpdateRe = regexp.MustCompile(`^STATUS_UPDATE:(Success|Failure)` + catIDSuffix + `$`)
)

// ParseData validates a wire data string against spec §6's grammar and
// decodes it. A non-matching string is a construction-time error: callers
// must not guess at intent for malformed data (spec §4.2 bullet 1, §7
// MalformedTransactionData).
func ParseData(data string) (ParsedData, error) {
	if m := catRe.FindStringSubmatch(data); m != nil {
		op, err := opFromMatch(m)
		if err != nil {
			return ParsedData{}, fmt.Errorf("%w: %q: %v", ErrMalformedTransactionData, data, err)
		}
		return ParsedData{Kind: KindCAT, Op: op}, nil
	}
	if m := statusUpdateRe.FindStringSubmatch(data); m != nil {
		decision := LimitedSuccess
		if m[1] == "Failure" {
			decision = LimitedFailure
		}
		return ParsedData{Kind: KindStatusUpdate, Decision: decision, CATId: CATId(m[2])}, nil
	}
	if m := dependentRe.FindStringSubmatch(data); m != nil {
		op, err := opFromMatch(m)
		if err != nil {
			return ParsedData{}, fmt.Errorf("%w: %q: %v", ErrMalformedTransactionData, data, err)
		}
		return ParsedData{Kind: KindDependent, Op: op, CATId: CATId(m[len(m)-1])}, nil
	}
	if m := regularRe.FindStringSubmatch(data); m != nil {
		op, err := opFromMatch(m)
		if err != nil {
			return ParsedData{}, fmt.Errorf("%w: %q: %v", ErrMalformedTransactionData, data, err)
		}
		return ParsedData{Kind: KindRegular, Op: op}, nil
	}
	return ParsedData{}, fmt.Errorf("%w: %q", ErrMalformedTransactionData, data)
}

// opFromMatch reads the credit/send capture groups out of a regexp match.
// Groups 1-2 are the credit form, 3-5 are the send form; exactly one set
// is non-empty because the alternation is mutually exclusive. The regexp
// only guarantees digits, not that they fit an AccountID (uint32) or an
// amount (uint64), so overflow is rejected here rather than silently
// wrapping.
func opFromMatch(m []string) (Op, error) {
	if m[1] != "" {
		to, err := parseAccount(m[1])
		if err != nil {
			return Op{}, err
		}
		amount, err := parseAmount(m[2])
		if err != nil {
			return Op{}, err
		}
		return Op{Credit: true, To: to, Amount: amount}, nil
	}
	from, err := parseAccount(m[3])
	if err != nil {
		return Op{}, err
	}
	to, err := parseAccount(m[4])
	if err != nil {
		return Op{}, err
	}
	amount, err := parseAmount(m[5])
	if err != nil {
		return Op{}, err
	}
	return Op{Credit: false, From: from, To: to, Amount: amount}, nil
}

func parseAccount(s string) (AccountID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return AccountID(v), err
}

func parseAmount(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// FormatStatusUpdate renders the data string HS embeds in the
// StatusUpdate transactions it submits back through CL.
func FormatStatusUpdate(decision StatusLimited, id CATId) string {
	return fmt.Sprintf("STATUS_UPDATE:%s.CAT_ID:%s", decision, id)
}

// FormatCAT renders a CAT.<op> data string.
func FormatCAT(op Op) string {
	return "CAT." + formatOp(op)
}

// FormatRegular renders a REGULAR.<op> data string.
func FormatRegular(op Op) string {
	return "REGULAR." + formatOp(op)
}

// FormatDependent renders a DEPENDENT.<op>.CAT_ID:<id> data string.
func FormatDependent(op Op, id CATId) string {
	return fmt.Sprintf("DEPENDENT.%s.CAT_ID:%s", formatOp(op), id)
}

func formatOp(op Op) string {
	if op.Credit {
		return fmt.Sprintf("credit %d %d", op.To, op.Amount)
	}
	return fmt.Sprintf("send %d %d %d", op.From, op.To, op.Amount)
}
