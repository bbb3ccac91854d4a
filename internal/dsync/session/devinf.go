package session

import (
	"github.com/marmos91/syncmld/internal/dsync/devinfo"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/wire"
)

// buildDevInfPut wraps a <DevInf> capability block in a <Put>
// addressed at the version-specific DevInf URI.
func buildDevInfPut(info devinfo.Info, version model.ProtocolVersion) *wire.Element {
	put := wire.NewElement(wire.NSSyncML, "Put")
	meta := put.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	meta.AddChild(wire.NewElement(wire.NSMetInf, "Type")).Text = "application/vnd.syncml-devinf+xml"
	item := put.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
	t := item.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
	t.AddText("LocURI", version.DevInfURI())
	item.AddChild(wire.NewElement(wire.NSSyncML, "Data")).AddChild(buildDevInfElement(info))
	return put
}

// buildDevInfGet builds a <Get> requesting the remote's DevInf.
func buildDevInfGet(version model.ProtocolVersion) *wire.Element {
	get := wire.NewElement(wire.NSSyncML, "Get")
	meta := get.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	meta.AddChild(wire.NewElement(wire.NSMetInf, "Type")).Text = "application/vnd.syncml-devinf+xml"
	item := get.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
	t := item.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
	t.AddText("LocURI", version.DevInfURI())
	return get
}

// buildDevInfResults wraps a <DevInf> block in a <Results> responding to
// the remote's prior Get, correlated via msgRef/cmdRef.
func buildDevInfResults(info devinfo.Info, version model.ProtocolVersion, msgRef, cmdRef string) *wire.Element {
	results := wire.NewElement(wire.NSSyncML, "Results")
	results.AddText("MsgRef", msgRef)
	results.AddText("CmdRef", cmdRef)
	meta := results.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	meta.AddChild(wire.NewElement(wire.NSMetInf, "Type")).Text = "application/vnd.syncml-devinf+xml"
	item := results.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
	src := item.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
	src.AddText("LocURI", version.DevInfURI())
	item.AddChild(wire.NewElement(wire.NSSyncML, "Data")).AddChild(buildDevInfElement(info))
	return results
}

func buildDevInfElement(info devinfo.Info) *wire.Element {
	d := wire.NewElement(wire.NSDevInf, "DevInf")
	d.AddText("Man", info.Man)
	d.AddText("Mod", info.Mod)
	d.AddText("OEM", info.OEM)
	d.AddText("FwV", info.FwV)
	d.AddText("SwV", info.SwV)
	d.AddText("HwV", info.HwV)
	d.AddText("DevID", info.DevID)
	d.AddText("DevTyp", info.DevTyp)
	if info.UTC {
		d.AddChild(wire.NewElement(wire.NSDevInf, "UTC"))
	}
	if info.SupportLargeObjs {
		d.AddChild(wire.NewElement(wire.NSDevInf, "SupportLargeObjs"))
	}
	if info.SupportNumberOfChanges {
		d.AddChild(wire.NewElement(wire.NSDevInf, "SupportNumberOfChanges"))
	}
	for _, ds := range info.DataStores {
		dsEl := d.AddChild(wire.NewElement(wire.NSDevInf, "DataStore"))
		dsEl.AddText("SourceRef", ds.SourceURI)
		rx := dsEl.AddChild(wire.NewElement(wire.NSDevInf, "Rx-Pref"))
		rx.AddText("CTType", ds.RxPreferredType)
		rx.AddText("VerCT", ds.RxPreferredVer)
		tx := dsEl.AddChild(wire.NewElement(wire.NSDevInf, "Tx-Pref"))
		tx.AddText("CTType", ds.TxPreferredType)
		tx.AddText("VerCT", ds.TxPreferredVer)
	}
	return d
}

// parseDevInfElement extracts a devinfo.Info from a decoded <DevInf>
// element, as found under a <Put Item><Data> or <Results Item><Data>.
func parseDevInfElement(el *wire.Element) devinfo.Info {
	var info devinfo.Info
	if el == nil {
		return info
	}
	info.Man = childText(el, "Man")
	info.Mod = childText(el, "Mod")
	info.OEM = childText(el, "OEM")
	info.FwV = childText(el, "FwV")
	info.SwV = childText(el, "SwV")
	info.HwV = childText(el, "HwV")
	info.DevID = childText(el, "DevID")
	info.DevTyp = childText(el, "DevTyp")
	info.UTC = el.Find("UTC") != nil
	info.SupportLargeObjs = el.Find("SupportLargeObjs") != nil
	info.SupportNumberOfChanges = el.Find("SupportNumberOfChanges") != nil
	for _, ds := range el.FindAll("DataStore") {
		info.DataStores = append(info.DataStores, devinfo.DataStoreInfo{
			SourceURI: childText(ds, "SourceRef"),
		})
	}
	return info
}

func childText(el *wire.Element, name string) string {
	c := el.Find(name)
	if c == nil {
		return ""
	}
	return c.Text
}

// findDevInfElement returns the inner <DevInf> element carried in an
// Item's <Data> block, if the item carries one.
func findDevInfElement(item *fragment.ItemParams) *wire.Element {
	if item == nil || item.DataElement == nil {
		return nil
	}
	if item.DataElement.Name == "DevInf" {
		return item.DataElement
	}
	return item.DataElement.Find("DevInf")
}
