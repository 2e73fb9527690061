package textproc

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespacePattern        = regexp.MustCompile(`\s+`)
	spaceBeforePunctuPattern = regexp.MustCompile(` +([!?.])`)
)

// Normalize cleans up OCR or translated bubble text. Hyphenated line breaks are joined,
// whitespace is collapsed, spaces before sentence punctuation are dropped and every sentence is
// lowercased with its first letter capitalized. Punctuation runs such as "!!!" or "?!" are kept.
// E.g., "  WOW   !!   OKAY   ?  " -> "Wow!! Okay?"
func Normalize(input string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(input, "- ", ""))
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = spaceBeforePunctuPattern.ReplaceAllString(cleaned, "$1")
	if cleaned == "" {
		return ""
	}

	sentences := []string{}
	for _, sentence := range splitSentences(cleaned) {
		if sentence = strings.TrimSpace(sentence); sentence != "" {
			sentences = append(sentences, capitalize(strings.ToLower(sentence)))
		}
	}
	return strings.Join(sentences, " ")
}

func splitSentences(text string) []string {
	runes := []rune(text)
	sentences := []string{}
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		for i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			i++
		}
		sentences = append(sentences, string(runes[start:i+1]))
		start = i + 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func capitalize(sentence string) string {
	runes := []rune(sentence)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			break
		}
	}
	return string(runes)
}

// LoadLabels reads a recognizer key file with one label per line. Index 0 is the CTC blank.
func LoadLabels(reader io.Reader) ([]string, error) {
	labels := []string{}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// DecodeCTC performs greedy CTC decoding over logits shaped [timeSteps][classes]. Blanks
// (index 0) and repeats of the previous step are skipped; an index without a label decodes to
// a space.
func DecodeCTC(logits [][]float32, labels []string) string {
	var builder strings.Builder
	last := -1
	for _, step := range logits {
		index := argmax(step)
		if index != 0 && index != last {
			if index < len(labels) {
				builder.WriteString(labels[index])
			} else {
				builder.WriteString(" ")
			}
		}
		last = index
	}
	return builder.String()
}

func argmax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
