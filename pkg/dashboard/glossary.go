package dashboard

import (
	"strings"
	"unicode"
)

// DefaultGlossary explains the terms used across the dashboard.
var DefaultGlossary = map[string]string{
	"SMA20":        "Simple Moving Average over 20 days. Smooths out short-term price noise.",
	"EMA":          "Exponential Moving Average. Gives more weight to recent price data.",
	"RSI":          "Relative Strength Index. Identifies overbought (70+) or oversold (30-) conditions.",
	"Candlesticks": "Displays daily open, high, low, and close prices as visual bars.",
	"Confidence":   "How confident the AI model is in its prediction. Higher % = stronger signal.",
}

// Token is one word of an explanation. Definition is set when the word is
// a glossary term.
type Token struct {
	Text       string `json:"text"`
	Term       string `json:"term,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// Tokenize splits explanation on whitespace and marks the words that,
// stripped of surrounding punctuation and upper-cased, name a glossary term.
func Tokenize(explanation string, glossary map[string]string) []Token {
	terms := make(map[string]string, len(glossary))
	for term := range glossary {
		terms[strings.ToUpper(term)] = term
	}

	words := strings.Fields(explanation)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		token := Token{Text: word}
		clean := strings.ToUpper(strings.TrimFunc(word, unicode.IsPunct))
		if term, ok := terms[clean]; ok {
			token.Term = term
			token.Definition = glossary[term]
		}
		tokens = append(tokens, token)
	}

	return tokens
}
