package fields

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/zkpdf/internal/pdftest"
	"github.com/georgepadayatti/zkpdf/pdf/generic"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
	"github.com/georgepadayatti/zkpdf/pdf/writer"
)

func openPDF(t *testing.T, data []byte) *reader.Document {
	t.Helper()
	doc, err := reader.Open(data)
	require.NoError(t, err)
	return doc
}

// withEmptyField appends an unsigned signature field named name.
func withEmptyField(t *testing.T, data []byte, name string, page int) []byte {
	t.Helper()
	w, err := writer.NewIncremental(openPDF(t, data))
	require.NoError(t, err)
	_, _, err = w.AddSignatureField(name, page, &generic.Rectangle{LLX: 10, LLY: 10, URX: 110, URY: 60})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	return buf.Bytes()
}

func TestSignatureFormFieldIsSigned(t *testing.T) {
	field := &SignatureFormField{FullName: "Sig1"}
	if field.IsSigned() {
		t.Error("Empty field should not be signed")
	}

	field.Value = generic.NewDictionary()
	if !field.IsSigned() {
		t.Error("Field with value should be signed")
	}
}

func TestEnumerateSignatureFieldsEmpty(t *testing.T) {
	_, err := EnumerateSignatureFields(openPDF(t, pdftest.TextPDF([]string{"no form"})))
	assert.ErrorIs(t, err, ErrNoAcroForm)
}

func TestEnumerateSignatureFields(t *testing.T) {
	data := pdftest.TextPDF([]string{"one"}, []string{"two"})
	data = withEmptyField(t, data, "First", 0)
	data = withEmptyField(t, data, "Second", 1)

	got, err := EnumerateSignatureFields(openPDF(t, data))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "First", got[0].FullName)
	assert.Equal(t, 0, got[0].Page)
	assert.Equal(t, "Second", got[1].FullName)
	assert.Equal(t, 1, got[1].Page)
	for _, f := range got {
		assert.False(t, f.IsSigned())
		require.NotNil(t, f.FieldRef)
		require.NotNil(t, f.Rect)
		assert.Equal(t, 100.0, f.Rect.Width())
	}
}

func TestEnumerateHierarchicalFields(t *testing.T) {
	b := pdftest.NewBuilder()
	root := b.Document(pdftest.PageSpec{Content: pdftest.TextContent("x")})

	parentRef := b.Reserve()
	child := generic.NewDictionary()
	child.Set("T", generic.NewTextString("Approver"))
	child.Set("FT", generic.NameObject("Sig"))
	child.Set("Parent", parentRef)
	childRef := b.Add(child)

	text := generic.NewDictionary()
	text.Set("T", generic.NewTextString("Comment"))
	text.Set("FT", generic.NameObject("Tx"))
	text.Set("Parent", parentRef)
	textRef := b.Add(text)

	parent := generic.NewDictionary()
	parent.Set("T", generic.NewTextString("Review"))
	parent.Set("Kids", generic.NewArray(childRef, textRef))
	b.Set(parentRef, parent)

	form := generic.NewDictionary()
	form.Set("Fields", generic.NewArray(parentRef, parentRef))
	data := buildWithForm(t, b, root, form)

	got, err := EnumerateSignatureFields(openPDF(t, data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Review.Approver", got[0].FullName)
	assert.Equal(t, -1, got[0].Page)
}

// buildWithForm attaches form as the catalog /AcroForm before building.
func buildWithForm(t *testing.T, b *pdftest.Builder, root generic.Reference, form *generic.DictionaryObject) []byte {
	t.Helper()
	data := b.Build(root)
	doc := openPDF(t, data)
	w, err := writer.NewIncremental(doc)
	require.NoError(t, err)
	catalog := doc.Catalog().Clone()
	catalog.Set("AcroForm", w.AddObject(form))
	w.UpdateObject(root, catalog)
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf))
	return buf.Bytes()
}
