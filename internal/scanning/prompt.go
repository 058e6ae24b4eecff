package scanning

// systemPrompt sets up the model before the image and instructions
const systemPrompt = "You are an expert at reading grocery receipts and sorting products into food groups."

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning grocery receipts
const receiptScanPrompt = `You are reading a grocery store receipt. Read every line of the image and extract:

1. **Store**: the name of the grocery store, usually printed at the top.

2. **Date**: the purchase date, written as MM/DD/YYYY.

3. **Items**: every purchased product line. For each one give
   - "name": the product name as printed, expanded if abbreviated
   - "price": the unit price in dollars
   - "quantity": the number of units (1 if not printed)
   - "category": exactly one of "Vegetables", "Fruits", "Grains", "Protein", "Dairy", or "Uncategorized" for anything else (household goods, snacks, drinks, deposits)
   - "total_price": the line total in dollars

Do not include subtotal, tax, discount, or payment lines as items.

Return ONLY valid JSON in this exact format:
{
  "store": "Store Name",
  "date": "MM/DD/YYYY",
  "items": [
    {"name": "Carrots", "price": 1.25, "quantity": 2, "category": "Vegetables", "total_price": 2.50}
  ]
}

Important:
- Prices must be numbers (not strings), in dollars and cents
- If you cannot read the date, use "NA/NA/NA"
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
