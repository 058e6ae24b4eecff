package ledger

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseReceiptDate", func() {
	DescribeTable("valid dates",
		func(input string, year int, month time.Month) {
			p, err := ParseReceiptDate(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(Period{Year: year, Month: month}))
		},
		Entry("four digit year", "01/01/2024", 2024, time.January),
		Entry("two digit year", "12/31/23", 2023, time.December),
		Entry("single digit month and day", "3/7/2025", 2025, time.March),
		Entry("leap day", "02/29/2024", 2024, time.February),
	)

	DescribeTable("invalid dates",
		func(input string) {
			_, err := ParseReceiptDate(input)
			var dateErr *DateFormatError
			Expect(err).To(BeAssignableToTypeOf(dateErr))
			Expect(err.Error()).To(ContainSubstring(input))
		},
		Entry("placeholder month and day", "NA/NA/2024"),
		Entry("placeholder everything", "NA/NA/NA"),
		Entry("ISO format", "2024-01-01"),
		Entry("month out of range", "13/01/2024"),
		Entry("day out of range", "02/30/2024"),
		Entry("three digit year", "01/01/202"),
		Entry("empty", ""),
	)

	It("keys the period by year number and month name", func() {
		p := Period{Year: 2024, Month: time.January}
		Expect(p.YearKey()).To(Equal("2024"))
		Expect(p.MonthKey()).To(Equal("January"))
		Expect(MonthPath(p)).To(Equal("periods.2024.months.January"))
	})
})

var _ = Describe("ParseMonth", func() {
	DescribeTable("accepted forms",
		func(input string, expected time.Month, ok bool) {
			m, got := ParseMonth(input)
			Expect(got).To(Equal(ok))
			Expect(m).To(Equal(expected))
		},
		Entry("name", "January", time.January, true),
		Entry("lower case name", "march", time.March, true),
		Entry("abbreviation", "Sep", time.September, true),
		Entry("number", "11", time.November, true),
		Entry("zero", "0", time.Month(0), false),
		Entry("garbage", "Smarch", time.Month(0), false),
	)
})
