package classify

// Default label vocabulary.
const (
	PressRelease     = "Press_Release"
	CallForProposals = "Call_for_Proposals"
	AwardGrant       = "Award/Grant"
	GuidanceNotice   = "Guidance/Notice"
	Report           = "Report"
	BlogNews         = "Blog/News"

	OtherProgramme = "Other/NA"
)

// DefaultRuleSet returns the built-in rule tables. Each call returns a fresh
// copy that callers may modify.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		DocType: Table{
			Mode:       ModeFirst,
			LeadWindow: 200,
			Rules: []Rule{
				{Label: PressRelease, Contains: []string{"press release"}, Lead: []string{"press"}},
				{Label: CallForProposals, Contains: []string{"call for proposals"}},
				{Label: AwardGrant, AllOf: []string{"award", "grant"}},
				{Label: GuidanceNotice, Contains: []string{"guidance", "guidelines"}},
				{Label: Report, Contains: []string{"report"}},
			},
			Default: []string{BlogNews},
		},
		Programme: Table{
			Mode:   ModeAll,
			Sorted: true,
			Rules: []Rule{
				{Label: "InvestEU", Contains: []string{"investeu", "invest eu"}, Domains: []string{"investeu"}},
				{Label: "EDF", Contains: []string{"european defence fund"}, Regex: []string{`\bedf\b`}},
				{Label: "EIB", Contains: []string{"european investment bank"}, Regex: []string{`\beib\b`}},
				{Label: "EIF", Contains: []string{"european investment fund"}, Regex: []string{`\beif\b`}},
				{Label: "ASAP", AllOf: []string{"asap", "support act"}},
			},
			Default: []string{OtherProgramme},
		},
		Instrument: Table{
			Mode: ModeAll,
			Rules: []Rule{
				{Label: "Grant", Regex: []string{`\bgrants?\b`}},
				{Label: "Guarantee", Regex: []string{`\bguarantees?\b`}},
				{Label: "Equity/Venture", Regex: []string{`\bequity\b`, `\bventure\b`, `\bfund of funds\b`}},
				{Label: "Loan", Regex: []string{`\bloans?\b`}},
				{Label: "Procurement", Regex: []string{`\bprocurement\b`, `\btender\b`}},
				{Label: "Listing/Market", Regex: []string{`\blisting\b`, `\bipo\b`}},
			},
			Fallback: &Rule{Label: "Procurement", Contains: []string{"tender"}},
		},
		TechArea: Table{
			Mode: ModeAll,
			Rules: []Rule{
				{Label: "AI/Autonomy", Regex: []string{`\bai\b`, `\bartificial intelligence\b`, `\bautonom(?:y|ous)\b`, `\bc4isr\b`}},
				{Label: "Advanced_Semiconductors", Regex: []string{`\bsemiconductors?\b`, `\bchips?\b`, `\bphotonics?\b`}},
				{Label: "Quantum", Regex: []string{`\bquantum\b`}},
				{Label: "Biotech", Regex: []string{`\bbiotech(?:nology)?\b`}},
				{Label: "Space/EO", Regex: []string{`\bsatellites?\b`, `\bearth observation\b`, `\beo\b`, `\bgnss\b`}},
				{Label: "Cybersecurity", Regex: []string{`\bcyber`, `\bsoc\b`, `\bthreat intel`, `\bzero trust\b`}},
				{Label: "Advanced_Computing/HPC", Regex: []string{`\bhpc\b`, `\bsupercomput(?:ing|ers?)\b`}},
				{Label: "Robotics/Drones", Regex: []string{`\bdrones?\b`, `\buavs?\b`, `\buas\b`, `\brobotics\b`, `\bswarms?\b`}},
				{Label: "Advanced_Materials", Regex: []string{`\bcomposites?\b`, `\bgraphene\b`, `\badvanced materials\b`}},
				{Label: "Energy_Tech", Regex: []string{`\bbatter(?:y|ies)\b`, `\bhydrogen\b`, `\bfusion\b`, `\benergy storage\b`}},
				{Label: "Communications/5G+/SatCom", Regex: []string{`\b5g\b`, `\b6g\b`, `\bsatcom\b`, `\boptical comm`}},
				{Label: "Positioning/Navigation/Timing", Regex: []string{`\bpnt\b`, `\bnavigation\b`, `\bgnss\b`}},
			},
		},
	}
}

// Default compiles DefaultRuleSet. The built-in tables always compile.
func Default() *Classifier {
	c, err := New(DefaultRuleSet())
	if err != nil {
		panic(err)
	}
	return c
}
