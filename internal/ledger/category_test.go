package ledger

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCategory", func() {
	DescribeTable("known names",
		func(input string, expected Category) {
			c, err := ParseCategory(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(expected))
		},
		Entry("exact", "Vegetables", Vegetables),
		Entry("lower case", "fruits", Fruits),
		Entry("padded", "  Grains ", Grains),
		Entry("upper case", "PROTEIN", Protein),
		Entry("dairy", "Dairy", Dairy),
		Entry("empty", "", Uncategorized),
		Entry("sentinel", "uncategorized", Uncategorized),
	)

	When("the name is unknown", func() {
		It("returns an error", func() {
			c, err := ParseCategory("Snacks")
			Expect(err).To(HaveOccurred())
			Expect(c).To(Equal(Uncategorized))
		})
	})
})

var _ = Describe("Category", func() {
	It("tracks only the five food groups", func() {
		for _, c := range Categories {
			Expect(c.Tracked()).To(BeTrue(), c.String())
		}
		Expect(Uncategorized.Tracked()).To(BeFalse())
		Expect(Category(42).Tracked()).To(BeFalse())
	})

	It("encodes as its name in JSON", func() {
		data, err := json.Marshal(CategoryTotal{Category: Protein})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"category":"Protein"`))

		var ct CategoryTotal
		Expect(json.Unmarshal(data, &ct)).To(Succeed())
		Expect(ct.Category).To(Equal(Protein))
	})

	It("refuses to encode an out of range value", func() {
		_, err := json.Marshal(CategoryTotal{Category: Category(42)})
		Expect(err).To(HaveOccurred())
	})
})
