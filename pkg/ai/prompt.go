package ai

import (
	"fmt"
	"strings"
)

// PromptOptions tailors the rubric prompt to the cohort's region.
type PromptOptions struct {
	Region string
	Places []string
}

// DefaultPromptOptions grounds the examples in Sabah.
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		Region: "Sabah",
		Places: []string{"Kota Kinabalu", "Sandakan", "Tawau", "Kudat", "Ranau/Kundasang"},
	}
}

var blockRubric = []struct {
	key   string
	label string
	guide string
}{
	{"keyPartners", "Key Partners", "rakan kritikal yang nyata (syarikat/pihak); elak umum seperti \"rakan strategik\" tanpa contoh."},
	{"keyActivities", "Key Activities", "aktiviti boleh tindakan yang menyampaikan nilai; ukur spesifik dan kebaruan."},
	{"keyResources", "Key Resources", "aset kritikal (manusia/teknologi/kewangan); sebut peranan atau alat."},
	{"valuePropositions", "Value Propositions", "masalah pelanggan dan manfaat unik; elak buzzword kosong."},
	{"customerRelationships", "Customer Relationships", "sokongan, automasi atau komuniti yang sesuai dengan segmen."},
	{"channels", "Channels", "saluran capai pelanggan yang realistik dan konsisten dengan segmen."},
	{"customerSegments", "Customer Segments", "persona atau segmen jelas; elak \"semua orang\"."},
	{"costStructure", "Cost Structure", "kos utama yang selari dengan aktiviti dan sumber."},
	{"revenueStreams", "Revenue Streams", "mekanisme hasil yang padan dengan nilai dan segmen."},
}

// SystemPrompt is the fixed system message sent with every rubric prompt.
func SystemPrompt() string {
	return "Anda ialah penilai BMC yang tegas tetapi membantu. Balas dengan satu objek JSON sahaja."
}

// BuildPrompt renders the rubric prompt for a canvas. The output depends only on its arguments.
func BuildPrompt(input Canvas, opts PromptOptions) string {
	if strings.TrimSpace(opts.Region) == "" {
		opts = DefaultPromptOptions()
	}
	example := fmt.Sprintf("Contoh di %s:", opts.Region)

	b := strings.Builder{}
	b.WriteString("Anda ialah penilai Business Model Canvas (BMC) yang SANGAT TEGAS dan OBJEKTIF. Jawab dalam Bahasa Malaysia.\n\n")

	b.WriteString("PERATURAN WAJIB:\n")
	b.WriteString("- Jangan mereka-reka maklumat baharu. Nilai HANYA berdasarkan input pelajar.\n")
	b.WriteString("- Nilai setiap blok secara berasingan dengan skor 0-10, boleh mengandungi SATU tempat perpuluhan (cth. 7.5). 0 = kosong/tak relevan, 5 = sederhana, 10 = jelas, spesifik dan boleh dilaksana.\n")
	b.WriteString("- Beri skor 0 jika blok kosong, kurang daripada 5 perkataan, atau mengandungi placeholder seperti \"N/A\", \"-\", \"tak pasti\" atau \"not sure\", dan jelaskan sebabnya dalam tips.\n")
	b.WriteString("- Jika wujud percanggahan logik antara blok (cth. segmen pelanggan tidak boleh dicapai melalui saluran yang dinyatakan), tolak markah blok berkaitan dan sebutkan percanggahan itu dalam tips blok tersebut.\n")
	b.WriteString("- Skor keseluruhan BUKAN purata buta; ia menilai koheren antara blok dan kebolehlaksanaan keseluruhan.\n\n")

	b.WriteString("KEPERLUAN TIPS:\n")
	b.WriteString("- Setiap blok: 2-4 poin bullet pendek, spesifik dan boleh tindakan.\n")
	fmt.Fprintf(&b, "- Setiap blok mesti ada sekurang-kurangnya satu poin bermula dengan \"%s\" yang menggunakan konteks tempatan (cth. %s).\n", example, strings.Join(opts.Places, ", "))
	b.WriteString("- Jika sesuai, sertakan anggaran ringkas (julat harga, kadar komisen, kos logistik) supaya cadangan lebih praktikal.\n\n")

	b.WriteString("FORMAT OUTPUT: pulangkan SATU objek JSON sahaja, tanpa teks lain, dengan struktur berikut:\n")
	b.WriteString("{\n  \"scores\": {\n")
	for i, key := range BlockKeys {
		fmt.Fprintf(&b, "    \"%s\": 0-10%s\n", key, trailingComma(i))
	}
	b.WriteString("  },\n  \"tips\": {\n")
	for i, key := range BlockKeys {
		fmt.Fprintf(&b, "    \"%s\": \"- ...\\n- %s ...\"%s\n", key, example, trailingComma(i))
	}
	b.WriteString("  },\n")
	b.WriteString("  \"overallScore\": 0-10,\n")
	b.WriteString("  \"strengths\": \"2-4 ayat tentang kekuatan yang spesifik\",\n")
	b.WriteString("  \"weaknesses\": \"2-4 ayat tentang kelemahan, jurang atau andaian\"\n")
	b.WriteString("}\n\n")

	b.WriteString("RUBRIK RINGKAS SETIAP BLOK:\n")
	for _, item := range blockRubric {
		fmt.Fprintf(&b, "- %s (%s): %s\n", item.label, item.key, item.guide)
	}
	b.WriteString("\n")

	b.WriteString("MAKLUMAT PELAJAR:\n")
	fmt.Fprintf(&b, "- Nama Pelajar: %s\n", strings.TrimSpace(input.StudentName))
	fmt.Fprintf(&b, "- Idea Perniagaan: %s\n\n", strings.TrimSpace(input.BusinessIdea))

	b.WriteString("KANDUNGAN BMC:\n")
	for _, key := range BlockKeys {
		fmt.Fprintf(&b, "- %s: %s\n", key, strings.TrimSpace(input.Blocks[key]))
	}

	return b.String()
}

func trailingComma(i int) string {
	if i == len(BlockKeys)-1 {
		return ""
	}
	return ","
}
