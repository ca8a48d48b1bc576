package extractor

import "fmt"

const readTextPrompt = `Extract all visible text from this image exactly as it appears.
Return only the text, line by line, with no commentary or formatting.`

func structurePrompt(rawText string) string {
	return fmt.Sprintf(`The following text was read from a payment confirmation screenshot.

Text:
"""
%s
"""

Return a single JSON object with exactly these fields:
- "date": the transaction date as written in the text, or "" if absent
- "utr": the UTR / UPI reference number (12 digits), or "" if absent
- "amount": the amount paid in INR as a plain number without currency symbols or separators, or "" if absent
- "is_edited": true if the text looks tampered with or inconsistent, otherwise false

Return only the JSON object.`, rawText)
}

func verifyAmountPrompt(amount, rawText string) string {
	return fmt.Sprintf(`An amount of %s INR was extracted from the payment screenshot text below.
Check the magnitude against the surrounding text, paying attention to decimal points and thousands separators.

Text:
"""
%s
"""

Reply with exactly one of:
- correct
- not found
- the corrected amount as a plain number`, amount, rawText)
}
