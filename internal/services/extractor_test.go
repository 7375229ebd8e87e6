package services

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const fullPage = `<!DOCTYPE html>
<html>
<head><title>Consulta NFC-e</title></head>
<body>
  <div id="conteudo">
    <div class="txtCenter">
      <div class="txtTopo">MERCADO EXEMPLO LTDA</div>
      <div class="text">CNPJ: 14.200.166/0001-96</div>
      <div class="text">RUA DAS FLORES, 123, CENTRO, SAO PAULO, SP</div>
    </div>
    <table id="tabResult">
      <tr id="Item + 1">
        <td>
          <span class="txtTit">F.FILE FRANGO</span>
          <span class="RCod">(Código: 7891234567890 )</span>
          <span class="Rqtd"><strong>Qtde.:</strong>0,512</span>
          <span class="RUN"><strong>UN: </strong>KG</span>
          <span class="RvlUnit"><strong>Vl. Unit.:</strong> 24,90</span>
        </td>
        <td><span class="valor">12,75</span></td>
      </tr>
      <tr id="Item + 2">
        <td>
          <span class="txtTit">AGUA MINERAL 500ML</span>
          <span class="RCod">(Código: 7890000111222 )</span>
          <span class="Rqtd"><strong>Qtde.:</strong>2</span>
          <span class="RUN"><strong>UN: </strong>UN</span>
          <span class="RvlUnit"><strong>Vl. Unit.:</strong> 2,50</span>
        </td>
        <td><span class="valor">5,00</span></td>
      </tr>
    </table>
    <div id="totalNota">
      <div id="linhaTotal">
        <label>Valor a pagar R$:</label>
        <span class="totalNumb txtMax">17,75</span>
      </div>
      <div id="linhaTotal">
        <label>Tributos Totais (Lei Fed. 12.741/2012) R$:</label>
        <span class="totalNumb">2,15</span>
      </div>
    </div>
    <div id="infos">
      <li>
        <strong>Emissão:</strong> 08/11/2025 14:32:10 - Via Consumidor
      </li>
      <li>
        <strong>Chave de acesso</strong>
        <span class="chave">3524 0814 2001 6600 0196 6500 1000 0123 4512 3456 7890</span>
      </li>
    </div>
  </div>
</body>
</html>`

func TestExtract_FullPage(t *testing.T) {
	extractor := NewExtractorService(newTestLogger())

	note, err := extractor.Extract(fullPage, testKey)
	require.NoError(t, err)
	require.NotNil(t, note)

	assert.Equal(t, "MERCADO EXEMPLO LTDA", note.MarketName)
	assert.Equal(t, "14.200.166/0001-96", note.MarketCNPJ)
	assert.Contains(t, note.MarketAddress, "RUA DAS FLORES")
	assert.Equal(t, time.Date(2025, 11, 8, 14, 32, 10, 0, time.UTC), note.EmissionDate)
	assert.Equal(t, testKey, note.AccessKey)
	assert.InDelta(t, 17.75, note.TotalValue, 0.001)
	require.NotNil(t, note.TotalTaxes)
	assert.InDelta(t, 2.15, *note.TotalTaxes, 0.001)

	require.Len(t, note.Products, 2)

	frango := note.Products[0]
	assert.Equal(t, "F.FILE FRANGO", frango.Name)
	assert.Equal(t, "7891234567890", frango.Barcode)
	assert.InDelta(t, 0.512, frango.Quantity, 0.001)
	assert.Equal(t, "KG", frango.Unit)
	assert.InDelta(t, 24.90, frango.UnitPrice, 0.001)
	assert.InDelta(t, 12.75, frango.TotalPrice, 0.001)
	assert.Equal(t, "Uncategorized", frango.Category)

	agua := note.Products[1]
	assert.Equal(t, "AGUA MINERAL 500ML", agua.Name)
	assert.InDelta(t, 2, agua.Quantity, 0.001)
	assert.Equal(t, "UN", agua.Unit)
	assert.InDelta(t, 5.00, agua.TotalPrice, 0.001)
}

const minimalPage = `<html>
<body>
  <table data-filter="#">
    <tr id="Item1">
      <td><span class="txtTit">Cafe torrado</span></td>
    </tr>
  </table>
</body>
</html>`

func TestExtract_MinimalPageDefaults(t *testing.T) {
	extractor := NewExtractorService(newTestLogger())

	note, err := extractor.Extract(minimalPage, testKey)
	require.NoError(t, err)

	// merchant name placeholder when every strategy fails
	assert.Equal(t, UnknownMarketName, note.MarketName)
	assert.Empty(t, note.MarketCNPJ)
	assert.Empty(t, note.MarketAddress)

	// no date on the page: ingestion time stands in
	assert.WithinDuration(t, time.Now().UTC(), note.EmissionDate, time.Minute)

	// key printed nowhere, the resolved key stands
	assert.Equal(t, testKey, note.AccessKey)

	require.Len(t, note.Products, 1)
	p := note.Products[0]
	assert.Equal(t, "Cafe torrado", p.Name)
	assert.Empty(t, p.Barcode)
	assert.InDelta(t, 1.0, p.Quantity, 0.001)
	assert.Equal(t, "UN", p.Unit)
	assert.InDelta(t, 0, p.UnitPrice, 0.001)
	assert.InDelta(t, 0, p.TotalPrice, 0.001)

	// no "Valor a pagar": total falls back to the item sum
	assert.InDelta(t, 0, note.TotalValue, 0.001)
	assert.Nil(t, note.TotalTaxes)
}

func TestExtract_RowWithoutPriceUsesQuantityTimesUnit(t *testing.T) {
	page := `<html><body>
	<table id="tabResult">
	  <tr id="Item1"><td>
	    <span class="txtTit">Arroz 5kg</span>
	    <span class="Rqtd">Qtde.: 3</span>
	    <span class="RvlUnit">Vl. Unit.: 21,50</span>
	  </td></tr>
	</table>
	</body></html>`

	extractor := NewExtractorService(newTestLogger())
	note, err := extractor.Extract(page, testKey)
	require.NoError(t, err)

	require.Len(t, note.Products, 1)
	assert.InDelta(t, 64.50, note.Products[0].TotalPrice, 0.001)
	assert.InDelta(t, 64.50, note.TotalValue, 0.001)
}

func TestExtract_SkipsRowsWithoutName(t *testing.T) {
	page := `<html><body>
	<table id="tabResult">
	  <tr id="Item1"><td><span class="txtTit">Produto A</span></td></tr>
	  <tr id="Item2"><td><span class="RCod">(Código: 123 )</span></td></tr>
	  <tr><td><span class="txtTit">cabecalho, sem id de item</span></td></tr>
	</table>
	</body></html>`

	extractor := NewExtractorService(newTestLogger())
	note, err := extractor.Extract(page, testKey)
	require.NoError(t, err)

	require.Len(t, note.Products, 1)
	assert.Equal(t, "Produto A", note.Products[0].Name)
}

func TestExtract_AuthorityErrorMarker(t *testing.T) {
	page := `<html><body>
	<div id="erro">Nota fiscal não encontrada na base de dados.</div>
	</body></html>`

	extractor := NewExtractorService(newTestLogger())
	_, err := extractor.Extract(page, testKey)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNoteNotFound))
}

func TestExtract_NoItemsIsUnusable(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"empty body", `<html><body><p>carregando...</p></body></html>`},
		{"table without item rows", `<html><body><table id="tabResult"><tr><td>vazio</td></tr></table></body></html>`},
	}

	extractor := NewExtractorService(newTestLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.Extract(tt.page, testKey)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindUnusableDocument))
		})
	}
}

func TestExtract_MerchantNameFallbacks(t *testing.T) {
	extractor := NewExtractorService(newTestLogger())

	itemTable := `<table id="tabResult">
	  <tr id="Item1"><td><span class="txtTit">Produto</span></td></tr>
	</table>`

	t.Run("company suffix in body text", func(t *testing.T) {
		page := `<html><body>
		<div>SUPERMERCADO BOM PRECO COMERCIO DE ALIMENTOS LTDA</div>` + itemTable + `
		</body></html>`

		note, err := extractor.Extract(page, testKey)
		require.NoError(t, err)
		assert.Contains(t, note.MarketName, "SUPERMERCADO BOM PRECO")
		assert.Contains(t, note.MarketName, "LTDA")
	})

	t.Run("title with company token", func(t *testing.T) {
		page := `<html><head><title>PADARIA CENTRAL EIRELI</title></head><body>` +
			itemTable + `</body></html>`

		note, err := extractor.Extract(page, testKey)
		require.NoError(t, err)
		assert.Equal(t, "PADARIA CENTRAL EIRELI", note.MarketName)
	})

	t.Run("heading with company token", func(t *testing.T) {
		page := `<html><body><h2>Atacadao Vila Nova LTDA</h2>` + itemTable + `</body></html>`

		note, err := extractor.Extract(page, testKey)
		require.NoError(t, err)
		assert.Equal(t, "Atacadao Vila Nova LTDA", note.MarketName)
	})
}

func TestExtract_EmissionDateWithoutSeconds(t *testing.T) {
	page := `<html><body>
	<li><strong>Emissão:</strong> 15/03/2026 09:05</li>
	<table id="tabResult">
	  <tr id="Item1"><td><span class="txtTit">Produto</span></td></tr>
	</table>
	</body></html>`

	extractor := NewExtractorService(newTestLogger())
	note, err := extractor.Extract(page, testKey)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 9, 5, 0, 0, time.UTC), note.EmissionDate)
}

func TestExtract_BadKeyOnPageKeepsResolvedKey(t *testing.T) {
	page := `<html><body>
	<div><span>Chave de acesso</span><span class="chave">123 456</span></div>
	<table id="tabResult">
	  <tr id="Item1"><td><span class="txtTit">Produto</span></td></tr>
	</table>
	</body></html>`

	extractor := NewExtractorService(newTestLogger())
	note, err := extractor.Extract(page, testKey)
	require.NoError(t, err)
	assert.Equal(t, testKey, note.AccessKey)
}
