package formula

// ExtractReferences returns every address a formula reads, in token order
// with ranges expanded row-major. Only the token stream is inspected, so a
// formula that fails to parse still reports its references. Duplicates are
// kept; malformed range tokens are skipped.
func ExtractReferences(formula string) ([]Address, error) {
	tokens, err := Tokenize(formula)
	if err != nil {
		return nil, err
	}

	var refs []Address
	for _, tok := range tokens {
		switch tok.Type {
		case TokenCell:
			if addr, err := ParseAddress(tok.Value); err == nil {
				refs = append(refs, addr)
			}
		case TokenRange:
			r, err := ParseRange(tok.Value)
			if err != nil {
				continue
			}
			refs = append(refs, r.Addresses()...)
		}
	}
	return refs, nil
}
